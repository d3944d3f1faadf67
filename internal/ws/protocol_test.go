package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkReadAcceptsMessageBatch(t *testing.T) {
	raw := []byte(`{"event":"markRead","data":{"ticketId":"SOL1","messageIds":["m1","m2","m3"]}}`)

	var envelope ClientEnvelope
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, EventMarkRead, envelope.Event)

	var payload MarkReadPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "SOL1", payload.TicketID)
	assert.Equal(t, []string{"m1", "m2", "m3"}, payload.MessageIDs)
}
