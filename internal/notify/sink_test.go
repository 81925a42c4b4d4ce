package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

func TestWebhookSinkPayload(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var p webhookPayload
		require.NoError(t, json.Unmarshal(body, &p))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, logging.NewNop())
	sink.Report(context.Background(), "failed to install Foo: feed unreachable", host.SeverityError)

	p := <-received
	assert.Equal(t, "failed to install Foo: feed unreachable", p.Message)
	assert.Equal(t, "error", p.Severity)
	assert.False(t, p.Timestamp.IsZero())
}

func TestWebhookSinkSwallowsDeliveryFailure(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:0/notify", logging.NewNop())
	// Must not panic or propagate anything.
	sink.Report(context.Background(), "message", host.SeverityInfo)
}

func TestMultiFansOut(t *testing.T) {
	var calls []string
	a := sinkFunc(func(msg string) { calls = append(calls, "a:"+msg) })
	b := sinkFunc(func(msg string) { calls = append(calls, "b:"+msg) })

	Multi{a, b}.Report(context.Background(), "hello", host.SeverityInfo)
	assert.Equal(t, []string{"a:hello", "b:hello"}, calls)
}

type sinkFunc func(message string)

func (f sinkFunc) Report(_ context.Context, message string, _ host.Severity) {
	f(message)
}
