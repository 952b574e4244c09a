package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateClicks(t *testing.T) {
	events := []ClickEvent{
		{ShortCode: "abc123"},
		{ShortCode: "xyz789"},
		{ShortCode: "abc123"},
		{ShortCode: "abc123"},
	}

	counts := AggregateClicks(events)

	assert.Equal(t, int64(3), counts["abc123"])
	assert.Equal(t, int64(1), counts["xyz789"])
	assert.Len(t, counts, 2)
}

func TestClickEventWireFormat(t *testing.T) {
	// The worker decodes these field names from the queue; renaming them
	// breaks every in-flight message.
	event := ClickEvent{
		ShortCode: "abc123",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UserAgent: "curl/8.0",
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Contains(t, fields, "short_code")
	assert.Contains(t, fields, "timestamp")
	assert.Contains(t, fields, "user_agent")
}
