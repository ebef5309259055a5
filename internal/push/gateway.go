package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/pkg/circuitbreaker"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// GatewayConfig identifies the vendor messaging gateway and how to
// recognize endpoints that belong to it.
type GatewayConfig struct {
	// Host of endpoint URIs routed through the gateway.
	EndpointHost string
	// SendURL is the gateway's v1 send endpoint.
	SendURL string
}

// GatewayChannel delivers through a provider messaging API authenticated
// with a service-account bearer credential. The token source caches and
// refreshes the bearer; only the per-endpoint assertion of the standard
// channel has to be rebuilt per destination.
type GatewayChannel struct {
	cfg    GatewayConfig
	tokens oauth2.TokenSource
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
}

func NewGatewayChannel(cfg GatewayConfig, tokens oauth2.TokenSource, client *http.Client) *GatewayChannel {
	if client == nil {
		client = &http.Client{Timeout: DefaultAttemptTimeout}
	}
	return &GatewayChannel{
		cfg:    cfg,
		tokens: oauth2.ReuseTokenSource(nil, tokens),
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "push-gateway",
			MaxRequests: 10,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
		}),
	}
}

// CredentialsTokenSource builds the service-account token source from a
// credentials file.
func CredentialsTokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gateway credentials: %w", err)
	}

	return creds.TokenSource, nil
}

// Matches reports whether the endpoint is routed through this gateway.
func (c *GatewayChannel) Matches(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Host == c.cfg.EndpointHost && strings.Contains(u.Path, "/send/")
}

// deviceToken extracts the gateway device token from the trailing path
// segment of the endpoint URI.
func (c *GatewayChannel) deviceToken(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEndpoint, err)
	}

	idx := strings.LastIndex(u.Path, "/send/")
	if idx < 0 {
		return "", ErrMalformedEndpoint
	}
	token := u.Path[idx+len("/send/"):]
	if token == "" || strings.Contains(token, "/") {
		return "", ErrMalformedEndpoint
	}
	return token, nil
}

type sendRequest struct {
	Message gatewayMessage `json:"message"`
}

type gatewayMessage struct {
	Token        string            `json:"token"`
	Notification *baseNotification `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *androidConfig    `json:"android,omitempty"`
	Webpush      *webpushGWConfig  `json:"webpush,omitempty"`
}

type baseNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type androidConfig struct {
	Priority     string               `json:"priority,omitempty"`
	Notification *androidNotification `json:"notification,omitempty"`
}

type androidNotification struct {
	Icon string `json:"icon,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

type webpushGWConfig struct {
	Notification map[string]interface{} `json:"notification,omitempty"`
	FCMOptions   *webpushFCMOptions     `json:"fcm_options,omitempty"`
}

type webpushFCMOptions struct {
	Link string `json:"link,omitempty"`
}

// Send posts the structured message to the gateway. The notification block
// carries title and body; auxiliary fields ride in data; android/webpush
// blocks carry rendering hints per platform.
func (c *GatewayChannel) Send(ctx context.Context, sub *model.PushSubscription, payload *model.PushPayload) (int, error) {
	token, err := c.deviceToken(sub.Endpoint)
	if err != nil {
		return 0, err
	}

	bearer, err := c.tokens.Token()
	if err != nil {
		return 0, fmt.Errorf("failed to obtain gateway bearer: %w", err)
	}

	data := make(map[string]string, len(payload.Data)+2)
	for k, v := range payload.Data {
		data[k] = v
	}
	if payload.Icon != "" {
		data["icon"] = payload.Icon
	}
	if payload.Tag != "" {
		data["tag"] = payload.Tag
	}

	msg := sendRequest{
		Message: gatewayMessage{
			Token: token,
			Notification: &baseNotification{
				Title: payload.Title,
				Body:  payload.Body,
			},
			Data: data,
			Android: &androidConfig{
				Priority: "high",
				Notification: &androidNotification{
					Icon: payload.Icon,
					Tag:  payload.Tag,
				},
			},
			Webpush: &webpushGWConfig{
				Notification: map[string]interface{}{
					"icon":  payload.Icon,
					"badge": payload.Badge,
					"tag":   payload.Tag,
				},
				FCMOptions: &webpushFCMOptions{
					Link: payload.Data["url"],
				},
			},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal gateway message: %w", err)
	}

	var status int
	err = c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SendURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bearer.AccessToken)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		status = resp.StatusCode
		// Only server-side failures count against the breaker.
		if status >= 500 {
			return fmt.Errorf("gateway returned %d", status)
		}
		return nil
	})
	if err != nil && status == 0 {
		return 0, err
	}

	return status, nil
}
