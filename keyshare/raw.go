package keyshare

import (
	"encoding/json"
	"maps"
)

// overlay merges the JSON object known on top of the raw fields of the original document,
// so that fields this package doesn't model survive a decode/encode cycle.
func overlay(raw map[string]json.RawMessage, known []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(raw)+len(fields))
	maps.Copy(out, raw)
	maps.Copy(out, fields)
	return json.Marshal(out)
}
