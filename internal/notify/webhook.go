// Package notify pushes emitted domain events to subscribed webhook
// endpoints. Delivery is best effort; the event itself is already persisted
// by the bus before any notifier runs.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/checkout-pricing/internal/events"
)

// Endpoint is a webhook destination subscribed to every emitted topic.
type Endpoint struct {
	URL    string
	Secret string
}

// WebhookNotifier delivers events to the configured endpoints, signing each
// request with the endpoint secret.
type WebhookNotifier struct {
	Endpoints []Endpoint
	Client    *http.Client
	Replay    ReplayProtector
	ReplayTTL time.Duration
}

// Notify implements events.Notifier. Failures for individual endpoints are
// joined; one unreachable endpoint does not stop delivery to the others.
func (n WebhookNotifier) Notify(ctx context.Context, event events.Event) error {
	if len(n.Endpoints) == 0 {
		return nil
	}
	ctx, span := otel.Tracer("notify.WebhookNotifier").Start(ctx, "WebhookNotifier.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.topic", event.Topic),
		attribute.String("webhook.event_id", event.ID.String()),
	)

	body, err := json.Marshal(struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    event.ID.String(),
		Topic:      event.Topic,
		Data:       json.RawMessage(event.Payload),
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	var joined error
	for _, ep := range n.Endpoints {
		if err := n.deliver(ctx, ep, event, body); err != nil {
			span.RecordError(err)
			joined = errors.Join(joined, fmt.Errorf("deliver to %s: %w", ep.URL, err))
		}
	}
	return joined
}

func (n WebhookNotifier) deliver(ctx context.Context, ep Endpoint, event events.Event, body []byte) error {
	if err := validateURL(ep.URL); err != nil {
		return err
	}
	if n.Replay != nil && n.ReplayTTL > 0 {
		key := "wh:" + ep.URL + ":" + event.ID.String()
		ok, err := n.Replay.Acquire(ctx, key, n.ReplayTTL)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "checkout-pricing-webhooks/1.0")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(ep.Secret, ts, event.ID.String(), body))

	client := n.Client
	if client == nil {
		client = HttpClient(5000, false)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint replied %d", resp.StatusCode)
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HttpClient returns an HTTP client configured for webhook delivery.
func HttpClient(timeoutMs int, insecure bool) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = insecureTLSConfig
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(transport),
	}
}

var insecureTLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
