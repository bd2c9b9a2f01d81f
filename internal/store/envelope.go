package store

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// CurrentVersion is the envelope version written by this build.
const CurrentVersion = 1

// LegacyVersion marks a value written without an envelope.
const LegacyVersion = 0

// Envelope wraps every persisted value with a schema version.
type Envelope struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals v and wraps it in a current-version envelope.
func Encode(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return EncodePayload(payload)
}

// EncodePayload wraps already-marshalled JSON in a current-version envelope.
func EncodePayload(payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", fmt.Errorf("payload is not valid JSON")
	}
	data, err := json.Marshal(Envelope{Version: CurrentVersion, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return string(data), nil
}

// Decode unwraps a stored value. Values written before envelopes existed are
// returned with LegacyVersion: valid JSON is taken as the payload and any other
// text is treated as a bare string, which is how plain string keys such as the
// token were stored.
func Decode(raw string) Envelope {
	data := bytes.TrimSpace([]byte(raw))
	if !json.Valid(data) {
		quoted, _ := json.Marshal(raw)
		return Envelope{Version: LegacyVersion, Payload: quoted}
	}

	var head struct {
		Version *int            `json:"version"`
		Payload json.RawMessage `json:"payload"`
	}
	if data[0] == '{' && json.Unmarshal(data, &head) == nil &&
		head.Version != nil && *head.Version >= 1 && len(head.Payload) > 0 {
		return Envelope{Version: *head.Version, Payload: head.Payload}
	}
	return Envelope{Version: LegacyVersion, Payload: data}
}

// Unmarshal decodes the envelope payload into v.
func (e Envelope) Unmarshal(v any) error {
	return json.Unmarshal(e.Payload, v)
}
