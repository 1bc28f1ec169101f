// Package control implements the Control Protocol Codec (spec §4.6, §6):
// a JSON request parser and JSON response builder for the watcher control
// channel. Decoding is split from handling the way the teacher's RTMP
// control package splits Decode (T023) from Handle (T024): decodeRequest
// turns wire JSON into typed command values; Handle (handler.go) applies them
// against registry state and the command pipe.
package control

import (
	"encoding/json"
	"fmt"
)

// request is the top-level wire shape: a single "watcher" array of
// command objects (spec §4.6).
type request struct {
	Watcher []rawCommand `json:"watcher"`
}

// rawCommand is the union of every field any command kind may carry.
// Unused fields for a given cmd are simply absent from the JSON.
type rawCommand struct {
	Cmd        string    `json:"cmd"`
	Watchers   []string  `json:"watchers"`
	Timestamps []uint64  `json:"timestamps,omitempty"`
	Durations  []uint64  `json:"durations,omitempty"`
	FileNames  []string  `json:"fileNames,omitempty"`
	Periods    []uint64  `json:"periods,omitempty"`
	Values     []float64 `json:"values,omitempty"`
	Masks      []uint32  `json:"masks,omitempty"`
}

// decodeRequest parses the top-level JSON request into its command elements. A
// malformed top-level envelope is a ProtocolViolation; malformed individual
// elements are caught and skipped later, in Handle, since spec §4.6 wants
// the rest of the request to continue even when one element is bad.
func decodeRequest(data []byte) ([]rawCommand, error) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("control.decode: %w", err)
	}
	return req.Watcher, nil
}

// at returns arr[i] if present, else the zero value — implements the
// "missing entries default to 0" rule for timestamps[]/durations[] (spec
// §4.6).
func at[T any](arr []T, i int) T {
	if i < len(arr) {
		return arr[i]
	}
	var zero T
	return zero
}
