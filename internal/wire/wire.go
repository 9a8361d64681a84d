// Package wire implements the textual wire codec shared by the tool-side
// applier and the in-process agent: newline-delimited JSON update payloads
// followed by a single ack byte per batch.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DeltaPayloadType marks an UpdatePayload sent over the browser refresh
// channel. The pipe variant omits the field entirely.
const DeltaPayloadType = "HotReloadDelta"

// DiagnosticsPayloadType marks a DiagnosticsMessage.
const DiagnosticsPayloadType = "HotReloadDiagnosticsv1"

// Ack is the single-byte reply the agent writes after attempting a batch.
type Ack byte

// Ack values. AckNone stands for "no ack received" and is never written to
// the wire; PipeApplier reports a timed-out or failed ack read as an error
// rather than as an Ack value.
const (
	AckNone            Ack = 0xFF
	AckFailed          Ack = 0x00
	AckSuccess         Ack = 0x01
	AckSuccessRefresh  Ack = 0x02
)

// UpdateDelta is one module's metadata and intermediate-code delta.
type UpdateDelta struct {
	ModuleID      uuid.UUID `json:"moduleId"`
	MetadataDelta []byte    `json:"metadataDelta"`
	ILDelta       []byte    `json:"ilDelta"`
}

// UpdatePayload is the batch of deltas sent in one request.
type UpdatePayload struct {
	Type   string        `json:"type,omitempty"`
	Deltas []UpdateDelta `json:"deltas"`
}

// DiagnosticsMessage carries formatted diagnostics to the browser overlay.
type DiagnosticsMessage struct {
	Type        string   `json:"type"`
	Diagnostics []string `json:"diagnostics"`
}

// NewDiagnosticsMessage builds a DiagnosticsMessage with the correct type tag.
func NewDiagnosticsMessage(diagnostics []string) DiagnosticsMessage {
	return DiagnosticsMessage{
		Type:        DiagnosticsPayloadType,
		Diagnostics: diagnostics,
	}
}

// Encode marshals an UpdatePayload to a single line of JSON terminated by '\n'.
func Encode(payload UpdatePayload) ([]byte, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode update payload: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a single JSON line into an UpdatePayload.
//
// A delta whose moduleId is non-nil but whose byte slices are both empty is
// a fatal protocol error: the compiler never emits an update with no
// payload, so an empty-empty delta indicates a malformed or truncated
// message from the peer.
func Decode(line []byte) (UpdatePayload, error) {
	var payload UpdatePayload
	if err := json.Unmarshal(line, &payload); err != nil {
		return UpdatePayload{}, fmt.Errorf("decode update payload: %w", err)
	}
	if err := validatePayload(payload); err != nil {
		return UpdatePayload{}, err
	}
	return payload, nil
}

func validatePayload(payload UpdatePayload) error {
	for _, d := range payload.Deltas {
		if d.ModuleID != uuid.Nil && len(d.MetadataDelta) == 0 && len(d.ILDelta) == 0 {
			return fmt.Errorf("malformed delta for module %s: both metadata and IL deltas are empty", d.ModuleID)
		}
	}
	return nil
}

// EncodeDiagnostics marshals a DiagnosticsMessage to a single JSON line.
func EncodeDiagnostics(msg DiagnosticsMessage) ([]byte, error) {
	msg.Type = DiagnosticsPayloadType
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode diagnostics message: %w", err)
	}
	return append(data, '\n'), nil
}
