package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/duetapp/notify-api/internal/model"
)

func newGatewayUnderTest(sendURL string) *GatewayChannel {
	return NewGatewayChannel(GatewayConfig{
		EndpointHost: "fcm.googleapis.com",
		SendURL:      sendURL,
	}, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil)
}

func TestGatewayMatches(t *testing.T) {
	gateway := newGatewayUnderTest("http://unused")

	tests := []struct {
		endpoint string
		matches  bool
	}{
		{"https://fcm.googleapis.com/fcm/send/device-token-123", true},
		{"https://fcm.googleapis.com/wp/abc", false},
		{"https://updates.push.services.mozilla.com/wpush/v2/abc", false},
		{"://not-a-url", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.matches, gateway.Matches(tt.endpoint), tt.endpoint)
	}
}

func TestGatewayDeviceToken(t *testing.T) {
	gateway := newGatewayUnderTest("http://unused")

	token, err := gateway.deviceToken("https://fcm.googleapis.com/fcm/send/device-token-123")
	require.NoError(t, err)
	assert.Equal(t, "device-token-123", token)

	_, err = gateway.deviceToken("https://fcm.googleapis.com/fcm/send/")
	assert.ErrorIs(t, err, ErrMalformedEndpoint)

	_, err = gateway.deviceToken("https://fcm.googleapis.com/other/path")
	assert.ErrorIs(t, err, ErrMalformedEndpoint)
}

func TestGatewaySend(t *testing.T) {
	var captured sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gateway := newGatewayUnderTest(srv.URL)
	sub := &model.PushSubscription{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Endpoint: "https://fcm.googleapis.com/fcm/send/device-token-123",
	}
	payload := &model.PushPayload{
		Title: "New message",
		Body:  "You have a new message",
		Icon:  "/icons/message.png",
		Tag:   "message",
		Data:  map[string]string{"url": "/messages/42"},
	}

	status, err := gateway.Send(context.Background(), sub, payload)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "device-token-123", captured.Message.Token)
	require.NotNil(t, captured.Message.Notification)
	assert.Equal(t, "New message", captured.Message.Notification.Title)
	assert.Equal(t, "You have a new message", captured.Message.Notification.Body)
	assert.Equal(t, "/messages/42", captured.Message.Data["url"])
	assert.Equal(t, "/icons/message.png", captured.Message.Data["icon"])
	require.NotNil(t, captured.Message.Webpush)
	require.NotNil(t, captured.Message.Webpush.FCMOptions)
	assert.Equal(t, "/messages/42", captured.Message.Webpush.FCMOptions.Link)
}

func TestGatewaySendReturnsVendorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	gateway := newGatewayUnderTest(srv.URL)
	sub := &model.PushSubscription{
		ID:       uuid.New(),
		Endpoint: "https://fcm.googleapis.com/fcm/send/stale-token",
	}

	status, err := gateway.Send(context.Background(), sub, &model.PushPayload{Title: "hi"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGatewaySendMalformedEndpoint(t *testing.T) {
	gateway := newGatewayUnderTest("http://unused")
	sub := &model.PushSubscription{
		ID:       uuid.New(),
		Endpoint: "https://fcm.googleapis.com/fcm/send/",
	}

	_, err := gateway.Send(context.Background(), sub, &model.PushPayload{Title: "hi"})

	assert.ErrorIs(t, err, ErrMalformedEndpoint)
}
