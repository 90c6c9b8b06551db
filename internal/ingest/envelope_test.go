package ingest

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrapEnvelope builds the awslogs wrapper around payload the way the log
// delivery service does: gzip, then base64, then JSON.
func wrapEnvelope(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return []byte(fmt.Sprintf(`{"awslogs":{"data":%q}}`, encoded))
}

func TestDecodeEnvelope(t *testing.T) {
	body := wrapEnvelope(t, map[string]any{
		"messageType": "DATA_MESSAGE",
		"logGroup":    "/app/nginx/access_log",
		"logStream":   "web-01",
		"logEvents": []map[string]any{
			{"id": "e1", "timestamp": int64(1704067200000), "message": "line one"},
			{"id": "e2", "timestamp": int64(1704067201000), "message": "line two"},
		},
	})

	batch, err := DecodeEnvelope(body)
	require.NoError(t, err)

	assert.Equal(t, "/app/nginx/access_log", batch.LogGroup)
	assert.Equal(t, "web-01", batch.StreamID)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, "e1", batch.Events[0].EventID)
	assert.Equal(t, int64(1704067200000), batch.Events[0].Timestamp)
	assert.Equal(t, "line one", batch.Events[0].Message)
	assert.Equal(t, "e2", batch.Events[1].EventID)
}

func TestDecodeEnvelopeControlMessage(t *testing.T) {
	body := wrapEnvelope(t, map[string]any{
		"messageType": "CONTROL_MESSAGE",
		"logEvents":   []map[string]any{},
	})

	_, err := DecodeEnvelope(body)
	assert.ErrorIs(t, err, ErrControlMessage)
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("garbage")},
		{"missing awslogs", []byte(`{"other":{}}`)},
		{"data not base64", []byte(`{"awslogs":{"data":"!!!not-base64!!!"}}`)},
		{"data not gzip", []byte(`{"awslogs":{"data":"` + base64.StdEncoding.EncodeToString([]byte("plain")) + `"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.body)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrControlMessage)
		})
	}
}

func TestDecodeEnvelopeEmptyEvents(t *testing.T) {
	body := wrapEnvelope(t, map[string]any{
		"messageType": "DATA_MESSAGE",
		"logGroup":    "/g",
		"logStream":   "s",
		"logEvents":   []map[string]any{},
	})

	batch, err := DecodeEnvelope(body)
	require.NoError(t, err)
	assert.Empty(t, batch.Events)
}
