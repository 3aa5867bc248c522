package logreader

import (
	"bytes"
	"fmt"
	"os"

	"github.com/SteelMorgan/condorlog/internal/domain"
)

// Record layout:
//
//	005 (1583.004.000) 05/17 12:01:02 Job terminated.
//	        (1) Normal termination (return value 0)
//	...
//
// The first three bytes are the status, the job id sits between the
// parentheses and the record ends with a line holding only three dots.
const (
	statusLen = 3
	idOffset  = statusLen + 2 // skip "SSS ("
)

var (
	recordTerminator = []byte("...")
	terminatorLine   = []byte("\n...")
)

// ScanFile returns the last status of every job with a complete record in the submit log.
// The file is memory mapped and never written. Data after the last terminated
// record is ignored so that a log still being appended to can be read safely.
func ScanFile(path string) (domain.JobStatusMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open submit log: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat submit log: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		return make(domain.JobStatusMap), nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("submit log %s too large to map (%d bytes)", path, size)
	}

	buf, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("failed to map submit log: %w", err)
	}
	defer unmap()

	return ParseRecords(buf), nil
}

// ParseRecords scans buf for status records; later records for the same job win.
func ParseRecords(buf []byte) domain.JobStatusMap {
	jobs := make(domain.JobStatusMap)
	size := len(buf)
	idx := 0

	for idx+idOffset < size {
		status, err := domain.ParseRawStatus(string(buf[idx : idx+statusLen]))
		if err != nil {
			status = domain.InvalidRawStatus
		}

		idStart := idx + idOffset
		idEnd := bytes.IndexByte(buf[idStart:], ')')
		if idEnd < 0 {
			break
		}
		idEnd += idStart

		end := findTerminator(buf, idEnd+1)
		if end < 0 {
			break // record not finished yet
		}

		jobs[jobKey(buf[idStart:idEnd])] = status

		idx = end + len(recordTerminator)
		if idx < size && buf[idx] == '\r' {
			idx++
		}
		if idx < size && buf[idx] == '\n' {
			idx++
		}
	}

	return jobs
}

// findTerminator returns the offset of the first "..." line at or after from,
// or -1 when buf holds none yet. Dots inside free text do not count.
func findTerminator(buf []byte, from int) int {
	for from < len(buf) {
		i := bytes.Index(buf[from:], terminatorLine)
		if i < 0 {
			return -1
		}
		start := from + i + 1
		after := start + len(recordTerminator)
		switch {
		case after == len(buf), buf[after] == '\n':
			return start
		case buf[after] == '\r' && (after+1 == len(buf) || buf[after+1] == '\n'):
			return start
		}
		from = start
	}
	return -1
}

// jobKey strips the subprocess component: "1583.004.000" -> "1583.004"
func jobKey(id []byte) string {
	if bytes.Count(id, []byte{'.'}) >= 2 {
		id = id[:bytes.LastIndexByte(id, '.')]
	}
	return string(id)
}
