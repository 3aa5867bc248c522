package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			original := kind.Build(fileA)

			data, err := Encode(original)
			require.NoError(t, err)

			decoded, err := DecodeKind(data, kind)
			require.NoError(t, err)
			assert.Equal(t, original.Counts(), decoded.Counts())

			d, err := decoded.Diff(original)
			require.NoError(t, err)
			assert.True(t, d.Empty())

			again, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, data, again, "encoding must be deterministic")
		})
	}
}

func TestDecode_WrongKind(t *testing.T) {
	data, err := Encode(NewCounts(fileA))
	require.NoError(t, err)

	_, err = DecodeKind(data, KindSummary)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestDecode_Garbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     {},
		"text":      []byte("not a snapshot"),
		"truncated": {0xa3, 0x01, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestNames(t *testing.T) {
	data, err := EncodeNames([]string{"job.1.log", "job.2.log"})
	require.NoError(t, err)

	names, err := DecodeNames(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"job.1.log", "job.2.log"}, names)

	data, err = EncodeNames(nil)
	require.NoError(t, err)
	names, err = DecodeNames(data)
	require.NoError(t, err)
	assert.Equal(t, []string{}, names)
}
