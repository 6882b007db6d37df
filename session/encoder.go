package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotKey names the durable snapshot. Persisters that need a single
// name (a file, a browser storage slot) use it.
const SnapshotKey = "nextcrm-auth"

const snapshotFormatVersionCurrent = 1

// ErrSnapshotCorrupt is returned for snapshots that cannot be decoded.
var ErrSnapshotCorrupt = errors.New("session snapshot corrupt")

// EncodeSnapshot writes the format version followed by the JSON form of s.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(snapshotFormatVersionCurrent)
	if err := json.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrSnapshotCorrupt)
	}
	if data[0] != snapshotFormatVersionCurrent {
		return nil, fmt.Errorf("%w: unknown version %d", ErrSnapshotCorrupt, data[0])
	}

	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data[1:]))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrSnapshotCorrupt)
	}
	if s.IsAuthenticated && s.User == nil {
		return nil, fmt.Errorf("%w: authenticated without user", ErrSnapshotCorrupt)
	}
	return &s, nil
}
