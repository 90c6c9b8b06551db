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

func TestNewChatSinkValidation(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewChatSink(logger, ChatConfig{})
	require.Error(t, err)

	_, err = NewChatSink(logger, ChatConfig{WebhookURL: "not a url", Channel: "#x"})
	require.Error(t, err)

	s, err := NewChatSink(logger, ChatConfig{WebhookURL: "https://chat.example.com/hook", Channel: "#x"})
	require.NoError(t, err)
	assert.Equal(t, "chat", s.Name())
}

func TestChatSend(t *testing.T) {
	var got chatMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s, err := NewChatSink(zap.NewNop(), ChatConfig{WebhookURL: srv.URL, Channel: "#incidents"})
	require.NoError(t, err)

	ref, err := s.Send(context.Background(), Notification{
		Subject: DefaultSubject,
		Summary: "LogStream : web-01\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", ref)

	assert.Equal(t, "#incidents", got.Channel)
	require.Len(t, got.Blocks, 2)
	assert.Equal(t, "header", got.Blocks[0].Type)
	assert.Equal(t, DefaultSubject, got.Blocks[0].Text.Text)
	assert.Equal(t, "section", got.Blocks[1].Type)
	assert.Contains(t, got.Blocks[1].Text.Text, "LogStream : web-01")
}

func TestChatSendSurfacesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_blocks", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := NewChatSink(zap.NewNop(), ChatConfig{WebhookURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "invalid_blocks")
}

func TestChatSendServerFailureTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewChatSink(zap.NewNop(), ChatConfig{WebhookURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
