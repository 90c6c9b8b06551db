package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pubsubConfig(endpoint string) PubSubConfig {
	return PubSubConfig{
		Endpoint: endpoint,
		TopicARN: "arn:aws:sns:ap-northeast-1:111111111111:alerts",
	}
}

func TestNewPubSubSinkValidation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewPubSubSink(logger, PubSubConfig{})
	require.Error(t, err)

	_, err = NewPubSubSink(logger, PubSubConfig{Endpoint: "https://sns.example.com"})
	require.Error(t, err, "topic is required")

	s, err := NewPubSubSink(logger, pubsubConfig("https://sns.example.com"))
	require.NoError(t, err)
	assert.Equal(t, "pubsub", s.Name())
}

func TestPubSubSend(t *testing.T) {
	var got publishRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publish", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messageId":"m-123"}`))
	}))
	defer srv.Close()

	s, err := NewPubSubSink(zap.NewNop(), pubsubConfig(srv.URL))
	require.NoError(t, err)

	ref, err := s.Send(context.Background(), Notification{
		Subject: DefaultSubject,
		Summary: "LogStream : web-01\nEventID : evt-1\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-123", ref)

	assert.Equal(t, "arn:aws:sns:ap-northeast-1:111111111111:alerts", got.TopicARN)
	assert.Equal(t, DefaultSubject, got.Subject)
	assert.Equal(t, "json", got.MessageStructure)

	// The message is a JSON envelope whose "default" key carries the text
	// rendering.
	var envelope map[string]string
	require.NoError(t, json.Unmarshal([]byte(got.Message), &envelope))
	assert.Contains(t, envelope["default"], "LogStream : web-01")
}

func TestPubSubSendServerFailureTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := NewPubSubSink(zap.NewNop(), pubsubConfig(srv.URL))
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestPubSubSendRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"__type":"NotFoundException"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewPubSubSink(zap.NewNop(), pubsubConfig(srv.URL))
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "NotFoundException")
}
