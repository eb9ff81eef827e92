package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/elevenses/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired means the push service answered 410 Gone; the subscription is
// dead and should be dropped.
var ErrExpired = errors.New("push subscription expired")

// vapidSubscriber identifies the sender to push services, required by the
// VAPID spec.
const vapidSubscriber = "mailto:noreply@elevenses.app"

// pushTTL is how long, in seconds, a push service holds an undelivered
// notification for an offline device.
const pushTTL = 86400

// Payload is the notification body the service worker unpacks.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds the VAPID key pair.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// Service sends web push notifications signed with the VAPID keys.
type Service struct {
	publicKey  string
	privateKey string
}

func NewService(publicKey, privateKey string) *Service {
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

// VAPIDPublicKey exposes the public key browsers need to subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send pushes one payload to one subscription. A 410 from the push service
// comes back as ErrExpired so callers can prune the endpoint.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}
	opts := &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      vapidSubscriber,
		TTL:             pushTTL,
	}
	resp, err := webpush.SendNotification(data, target, opts)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys mints a P-256 key pair in the base64url encoding the
// web push protocol uses: a 65-byte uncompressed point and a 32-byte
// scalar.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate P-256 key: %w", err)
	}
	publicKey = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())
	return publicKey, privateKey, nil
}
