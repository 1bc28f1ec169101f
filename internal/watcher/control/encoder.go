package control

import (
	"encoding/json"
	"strconv"
)

// WatcherInfo is one element of a "list" response (spec §6).
type WatcherInfo struct {
	Name          string  `json:"name"`
	Watched       bool    `json:"watched"`
	Controlled    bool    `json:"controlled"`
	Logged        bool    `json:"logged"`
	Monitor       uint64  `json:"monitor"`
	LogFileName   string  `json:"logFileName"`
	Value         float64 `json:"value"`
	ValueInput    string  `json:"valueInput"`
	Type          string  `json:"type"`
	TimestampMode string  `json:"timestampMode"`
}

// ListResponse is the full registry snapshot (spec §6).
type ListResponse struct {
	Watchers   []WatcherInfo `json:"watchers"`
	SampleRate float32       `json:"sampleRate"`
	Timestamp  uint64        `json:"timestamp"`
}

// StartedLoggingResponse acknowledges a "log" command with the actual
// clamped start/end timestamps the RT thread applied (spec §6).
type StartedLoggingResponse struct {
	Watcher      string `json:"watcher"`
	LogFileName  string `json:"logFileName"`
	Timestamp    uint64 `json:"timestamp"`
	TimestampEnd uint64 `json:"timestampEnd"`
}

// envelope wraps every response in the top-level "watcher" object spec §6
// requires of both directions.
type envelope struct {
	Watcher any `json:"watcher"`
}

func marshalEnvelope(payload any) []byte {
	b, err := json.Marshal(envelope{Watcher: payload})
	if err != nil {
		// payload is always one of this package's own response structs;
		// a marshal failure here means a programmer error, not bad input.
		panic("control: failed to marshal response envelope: " + err.Error())
	}
	return b
}

// EncodeList marshals a ListResponse into the wire envelope.
func EncodeList(r ListResponse) []byte { return marshalEnvelope(r) }

// EncodeStartedLogging marshals a StartedLoggingResponse into the wire
// envelope.
func EncodeStartedLogging(r StartedLoggingResponse) []byte { return marshalEnvelope(r) }

// formatValueInput renders a numeric value the way the original's
// valueInput field does: a plain decimal string of what the host would
// need to send back as "set" to reproduce the current remote value (spec
// SPEC_FULL §3 supplement).
func formatValueInput(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
