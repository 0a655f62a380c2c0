package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warden/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() *service.AuditEventMessage {
	return &service.AuditEventMessage{
		EventID:    "7a4f3c1e-0000-4000-8000-000000000001",
		RequestID:  "req-1",
		UserID:     "u-1",
		Action:     "login",
		Status:     "failed",
		Category:   "authentication",
		Severity:   "critical",
		JourneyID:  "j-abc",
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLocalHTTPPublisherSendsPushEnvelope(t *testing.T) {
	var got PushMessage
	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-Id")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, slog.New(slog.DiscardHandler))
	require.NoError(t, publisher.PublishAuditEvent(context.Background(), testMessage()))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, localSubscription, got.Subscription)
	assert.Equal(t, "7a4f3c1e-0000-4000-8000-000000000001", got.Message.MessageID)
	assert.Equal(t, map[string]string{
		"event_id":   "7a4f3c1e-0000-4000-8000-000000000001",
		"severity":   "critical",
		"category":   "authentication",
		"request_id": "req-1",
	}, got.Message.Attributes)

	raw, err := base64.StdEncoding.DecodeString(got.Message.Data)
	require.NoError(t, err)
	var decoded service.AuditEventMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "login", decoded.Action)
	assert.Equal(t, "j-abc", decoded.JourneyID)
}

func TestLocalHTTPPublisherReportsWorkerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := NewLocalHTTPPublisher(server.URL, slog.New(slog.DiscardHandler))
	err := publisher.PublishAuditEvent(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestMessageAttributesOmitEmptyRequestID(t *testing.T) {
	msg := testMessage()
	msg.RequestID = ""

	attrs := messageAttributes(msg)
	assert.NotContains(t, attrs, "request_id")
	assert.Equal(t, "critical", attrs["severity"])
}
