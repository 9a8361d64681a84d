package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()
	payload := UpdatePayload{
		Deltas: []UpdateDelta{
			{
				ModuleID:      id,
				MetadataDelta: []byte{0x01, 0x02, 0x03},
				ILDelta:       []byte{0xAA, 0xBB},
			},
		},
	}

	data, err := Encode(payload)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	decoded, err := Decode(data[:len(data)-1])
	require.NoError(t, err)
	require.Len(t, decoded.Deltas, 1)
	assert.Equal(t, id, decoded.Deltas[0].ModuleID)
	assert.Equal(t, payload.Deltas[0].MetadataDelta, decoded.Deltas[0].MetadataDelta)
	assert.Equal(t, payload.Deltas[0].ILDelta, decoded.Deltas[0].ILDelta)
}

func TestEncodeBrowserVariantSetsType(t *testing.T) {
	payload := UpdatePayload{
		Type: DeltaPayloadType,
		Deltas: []UpdateDelta{
			{ModuleID: uuid.New(), MetadataDelta: []byte{0x01}, ILDelta: []byte{0x02}},
		},
	}

	data, err := Encode(payload)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"HotReloadDelta"`)
}

func TestDecodeRejectsEmptyDeltaWithModuleID(t *testing.T) {
	id := uuid.New()
	line := []byte(`{"deltas":[{"moduleId":"` + id.String() + `","metadataDelta":null,"ilDelta":null}]}`)

	_, err := Decode(line)
	assert.Error(t, err)
}

func TestDecodeAllowsEmptyBatch(t *testing.T) {
	decoded, err := Decode([]byte(`{"deltas":[]}`))
	require.NoError(t, err)
	assert.Empty(t, decoded.Deltas)
}

func TestNewDiagnosticsMessage(t *testing.T) {
	msg := NewDiagnosticsMessage([]string{"error CS1002: ; expected"})
	assert.Equal(t, DiagnosticsPayloadType, msg.Type)
	assert.Len(t, msg.Diagnostics, 1)

	data, err := EncodeDiagnostics(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), DiagnosticsPayloadType)
}
