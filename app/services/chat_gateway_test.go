package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatGateway_SendText(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"key":{"id":"ABC123"}}}`))
	}))
	defer srv.Close()

	gw := NewChatGateway(&config.ProviderConfig{BaseURL: srv.URL + "/", AccessToken: "tok", Timeout: time.Second}, zap.NewNop())
	res, err := gw.Send(context.Background(), SendRequest{Number: "919999999999", InstanceID: "inst-1", Text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", res.MessageID)

	require.NotNil(t, got)
	assert.Equal(t, "/send", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "919999999999", q.Get("number"))
	assert.Equal(t, "inst-1", q.Get("instance_id"))
	assert.Equal(t, "hello there", q.Get("message"))
	assert.Equal(t, "tok", q.Get("access_token"))
	assert.Equal(t, MessageTypeText, q.Get("type"))
	assert.Empty(t, q.Get("media_url"))
}

func TestChatGateway_SendMedia(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	filename, mediaURL := MediaAttachment("https://cdn.example.com", "/uploads/reports/report.xlsx")
	gw := NewChatGateway(&config.ProviderConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	res, err := gw.Send(context.Background(), SendRequest{Number: "1", InstanceID: "i", Text: "Download report", Filename: filename, MediaURL: mediaURL})
	require.NoError(t, err)
	assert.Empty(t, res.MessageID)

	q := got.URL.Query()
	assert.Equal(t, MessageTypeMedia, q.Get("type"))
	assert.Equal(t, "report.xlsx", q.Get("filename"))
	assert.Equal(t, "https://cdn.example.com/uploads/reports/report.xlsx", q.Get("media_url"))
}

func TestChatGateway_ProviderErrors(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		gw := NewChatGateway(&config.ProviderConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
		_, err := gw.Send(context.Background(), SendRequest{Number: "1"})
		assert.Error(t, err)
	})

	t.Run("error status in body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","message":"instance offline"}`))
		}))
		defer srv.Close()

		gw := NewChatGateway(&config.ProviderConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
		_, err := gw.Send(context.Background(), SendRequest{Number: "1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "instance offline")
	})
}

func TestMediaAttachment(t *testing.T) {
	filename, mediaURL := MediaAttachment("https://cdn.example.com", "")
	assert.Empty(t, filename)
	assert.Empty(t, mediaURL)

	filename, mediaURL = MediaAttachment("https://cdn.example.com", "/uploads/invite.jpg")
	assert.Equal(t, "invite.jpg", filename)
	assert.Equal(t, "https://cdn.example.com/uploads/invite.jpg", mediaURL)
}

func TestMockChatGateway_FailAt(t *testing.T) {
	gw := NewMockChatGateway()
	gw.FailAt = 2

	_, err := gw.Send(context.Background(), SendRequest{Number: "1", Text: "a"})
	require.NoError(t, err)
	_, err = gw.Send(context.Background(), SendRequest{Number: "2", Text: "b"})
	require.Error(t, err)
	_, err = gw.Send(context.Background(), SendRequest{Number: "3", Text: "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, gw.Texts())
}
