package store

import (
	"encoding/json"
	"fmt"

	"github.com/arloliu/helmsman/types"
)

// EncodeRecord serializes a record for byte-oriented backends.
func EncodeRecord(rec *types.Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", types.ErrInvalidRecord)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	return data, nil
}

// DecodeRecord parses bytes written by EncodeRecord.
//
// Missing field maps are initialized so callers can write into the result.
func DecodeRecord(data []byte) (*types.Record, error) {
	rec := &types.Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidRecord, err)
	}
	filled := types.NewRecord(rec.ID)
	filled.Merge(rec)

	return filled, nil
}

// MergeEncoded decodes current (nil when absent), merges rec into it and re-encodes.
func MergeEncoded(current []byte, rec *types.Record) ([]byte, error) {
	if current == nil {
		return EncodeRecord(rec)
	}
	base, err := DecodeRecord(current)
	if err != nil {
		return nil, err
	}
	base.Merge(rec)

	return EncodeRecord(base)
}
