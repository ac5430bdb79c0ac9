package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion is the record version written by Encode.
const CurrentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("storage: record version is newer than this build")
	ErrKindMismatch       = errors.New("storage: record kind mismatch")
)

type envelope struct {
	Version *int            `json:"v"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Encode wraps v in a versioned record tagged with kind.
func Encode(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}
	version := CurrentVersion
	return json.Marshal(envelope{Version: &version, Kind: kind, Data: data})
}

// Decode unpacks a record written by Encode into v. Values written before
// records were versioned (plain JSON, or raw text for string targets)
// are read as version 0 and decoded directly.
func Decode(raw []byte, kind string, v any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Version != nil && env.Data != nil {
		if *env.Version > CurrentVersion {
			return fmt.Errorf("%s v%d: %w", kind, *env.Version, ErrUnsupportedVersion)
		}
		if env.Kind != kind {
			return fmt.Errorf("want %s, got %s: %w", kind, env.Kind, ErrKindMismatch)
		}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("decoding %s: %w", kind, err)
		}
		return nil
	}
	return decodeLegacy(raw, kind, v)
}

func decodeLegacy(raw []byte, kind string, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	// The browser stored some strings raw, e.g. a tab name or a numeric id.
	if s, ok := v.(*string); ok && len(raw) > 0 {
		*s = string(raw)
		return nil
	}
	return fmt.Errorf("decoding legacy %s: %w", kind, err)
}
