package push

import (
	"context"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/duetapp/notify-api/internal/model"
)

// TTL handed to the push service; undeliverable payloads are kept this
// long before being discarded.
const standardTTL = 60 * 60 * 24

// StandardConfig holds the application's signing identity. The private key
// signs a short-lived assertion per destination origin; the public key is
// what clients subscribe against.
type StandardConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// StandardChannel delivers through the vendor-neutral web push protocol.
// The assertion audience varies per endpoint host, so it is rebuilt per
// send rather than cached across endpoints.
type StandardChannel struct {
	cfg    StandardConfig
	client *http.Client
}

func NewStandardChannel(cfg StandardConfig, client *http.Client) *StandardChannel {
	if client == nil {
		client = &http.Client{Timeout: DefaultAttemptTimeout}
	}
	return &StandardChannel{cfg: cfg, client: client}
}

func (c *StandardChannel) Send(ctx context.Context, sub *model.PushSubscription, body []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthSecret,
		},
	}, &webpush.Options{
		HTTPClient:      c.client,
		Subscriber:      c.cfg.Subscriber,
		VAPIDPublicKey:  c.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: c.cfg.VAPIDPrivateKey,
		TTL:             standardTTL,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
