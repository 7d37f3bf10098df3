package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/events"
	"github.com/noah-isme/checkout-pricing/internal/notify"
)

type memReplay struct {
	seen map[string]bool
}

func (m *memReplay) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memReplay) Release(_ context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

func testEvent() events.Event {
	return events.Event{
		ID:          uuid.New(),
		Topic:       events.TopicCheckoutPricesUpdated,
		AggregateID: uuid.New(),
		Payload:     []byte(`{"checkoutId":"abc"}`),
		OccurredAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifySignsPayload(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := testEvent()
	notifier := notify.WebhookNotifier{
		Endpoints: []notify.Endpoint{{URL: srv.URL, Secret: "topsecret"}},
		Client:    srv.Client(),
	}
	require.NoError(t, notifier.Notify(context.Background(), event))

	var decoded struct {
		EventID string          `json:"eventId"`
		Topic   string          `json:"topic"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	require.Equal(t, event.ID.String(), decoded.EventID)
	require.Equal(t, events.TopicCheckoutPricesUpdated, decoded.Topic)
	require.JSONEq(t, `{"checkoutId":"abc"}`, string(decoded.Data))

	ts, err := strconv.ParseInt(gotHeader.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	require.Equal(t, event.ID.String(), gotHeader.Get("X-Event-ID"))
	want := notify.ComputeSignature("topsecret", ts, event.ID.String(), gotBody)
	require.Equal(t, want, gotHeader.Get("X-Signature"))
}

func TestNotifySuppressesReplays(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := testEvent()
	notifier := notify.WebhookNotifier{
		Endpoints: []notify.Endpoint{{URL: srv.URL, Secret: "topsecret"}},
		Client:    srv.Client(),
		Replay:    &memReplay{},
		ReplayTTL: time.Minute,
	}
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.NoError(t, notifier.Notify(context.Background(), event))
	require.Equal(t, 1, calls)
}

func TestNotifyReportsEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := notify.WebhookNotifier{
		Endpoints: []notify.Endpoint{{URL: srv.URL, Secret: "s"}},
		Client:    srv.Client(),
	}
	require.Error(t, notifier.Notify(context.Background(), testEvent()))
}

func TestNotifyRejectsRemoteHTTPEndpoint(t *testing.T) {
	notifier := notify.WebhookNotifier{
		Endpoints: []notify.Endpoint{{URL: "http://example.com/hook", Secret: "s"}},
		Client:    http.DefaultClient,
	}
	require.Error(t, notifier.Notify(context.Background(), testEvent()))
}
