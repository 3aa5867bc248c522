package snapshot

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// codecVersion is bumped whenever the encoded layout changes
const codecVersion = 1

// ErrCorruptSnapshot is returned when encoded data cannot be decoded into a snapshot
var ErrCorruptSnapshot = errors.New("snapshot data is corrupted")

type envelope struct {
	Version int             `cbor:"1,keyasint"`
	Kind    int             `cbor:"2,keyasint"`
	Body    cbor.RawMessage `cbor:"3,keyasint"`
}

var (
	// Canonical encoding sorts map keys so equal snapshots encode to equal bytes
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 27,
		MaxMapPairs:      1 << 27,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor dec mode: %v", err))
	}
}

// Encode serializes a snapshot together with its kind
func Encode(s Snapshot) ([]byte, error) {
	body, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s snapshot: %w", s.Kind(), err)
	}
	data, err := encMode.Marshal(envelope{Version: codecVersion, Kind: int(s.Kind()), Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot envelope: %w", err)
	}
	return data, nil
}

// Decode restores a snapshot written by Encode
func Decode(data []byte) (Snapshot, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, env.Version)
	}

	kind := Kind(env.Kind)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrCorruptSnapshot, env.Kind)
	}

	s := kind.New()
	if err := decMode.Unmarshal(env.Body, s); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrCorruptSnapshot, kind, err)
	}
	return s, nil
}

// DecodeKind is Decode that also requires the snapshot to be of the given kind
func DecodeKind(data []byte, kind Kind) (Snapshot, error) {
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if s.Kind() != kind {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, kindMismatch(kind, s))
	}
	return s, nil
}

// EncodeNames serializes a list of file names (the inactive-file list)
func EncodeNames(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	data, err := encMode.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode names: %w", err)
	}
	return data, nil
}

// DecodeNames restores a list written by EncodeNames
func DecodeNames(data []byte) ([]string, error) {
	var names []string
	if err := decMode.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
