package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/duration"
	"solarcharge/backend/services/kiosk-service/internal/payment"
	"solarcharge/backend/services/kiosk-service/internal/session"
	"solarcharge/backend/services/kiosk-service/internal/store"
	"solarcharge/backend/services/kiosk-service/internal/view"
	"solarcharge/backend/services/kiosk-service/internal/ws"
)

type fakeConn struct {
	id   string
	mu   sync.Mutex
	msgs []view.Command
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg []byte) {
	var cmd view.Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, cmd)
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func newPages(t *testing.T, st store.Store) *Pages {
	t.Helper()
	gen, err := payment.NewUPIGenerator(payment.UPIConfig{PayeeVPA: "station@upi", PayeeName: "Kiosk", QRSize: 64})
	require.NoError(t, err)
	return NewPages(st, duration.NewCalculator(duration.Limits{}, 20), gen, zap.NewNop())
}

func TestPageHandlesIntents(t *testing.T) {
	st := store.NewMemoryStore()
	pages := newPages(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &fakeConn{id: "page-1"}
	page, err := pages.Open(ctx, conn)
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return page.State().Message == session.MsgReady })

	require.NoError(t, page.HandleIntent(ctx, ws.Intent{Type: ws.IntentRequestDuration, Minutes: "30"}))
	assert.Equal(t, session.AwaitingPayment, page.Stage())
	require.NotNil(t, page.State().Payment)
	assert.Equal(t, 10, page.State().Payment.Amount)

	require.NoError(t, page.HandleIntent(ctx, ws.Intent{Type: ws.IntentConfirmPayment}))
	require.NoError(t, page.HandleIntent(ctx, ws.Intent{Type: ws.IntentStart}))
	waitFor(t, time.Second, func() bool { return page.Stage() == session.Charging })

	states := pages.States()
	require.Len(t, states, 1)
	assert.Equal(t, "page-1", states[0].ID)
	assert.Equal(t, "charging", states[0].Stage)

	require.NoError(t, page.HandleIntent(ctx, ws.Intent{Type: ws.IntentStop}))
	rec, err := st.Get(ctx)
	require.NoError(t, err)
	assert.False(t, rec.Charging)

	err = page.HandleIntent(ctx, ws.Intent{Type: "dance"})
	require.ErrorIs(t, err, ErrUnknownIntent)
	assert.Positive(t, conn.count())

	cancel()
	waitFor(t, time.Second, func() bool { return len(pages.States()) == 0 })
}

func TestPagesShareTheStore(t *testing.T) {
	st := store.NewMemoryStore()
	pages := newPages(t, st)
	fixed := time.Unix(1700000000, 0)
	pages.now = func() time.Time { return fixed }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := pages.Open(ctx, &fakeConn{id: "a"})
	require.NoError(t, err)
	b, err := pages.Open(ctx, &fakeConn{id: "b"})
	require.NoError(t, err)
	waitFor(t, time.Second, func() bool { return a.State().Message == session.MsgReady })

	require.NoError(t, a.HandleIntent(ctx, ws.Intent{Type: ws.IntentRequestDuration, Hours: "1"}))
	require.NoError(t, a.HandleIntent(ctx, ws.Intent{Type: ws.IntentConfirmPayment}))
	require.NoError(t, a.HandleIntent(ctx, ws.Intent{Type: ws.IntentStart}))

	waitFor(t, time.Second, func() bool { return b.Stage() == session.Charging })
	assert.False(t, b.State().StartEnabled)
	assert.Equal(t, "01:00:00", b.State().CountdownText)
}

func TestWebsocketRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	pages := newPages(t, st)
	manager := ws.NewManager()
	server := ws.NewServer(manager, pages, time.Second, time.Second, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	readUntil := func(match func(map[string]any) bool) map[string]any {
		t.Helper()
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			var msg map[string]any
			require.NoError(t, client.ReadJSON(&msg))
			if match(msg) {
				return msg
			}
		}
	}

	readUntil(func(m map[string]any) bool { return m["type"] == view.CmdStatusMessage && m["text"] == session.MsgReady })
	waitFor(t, time.Second, func() bool { return manager.Count() == 1 })

	require.NoError(t, client.WriteJSON(map[string]any{"type": "request_duration", "hours": 0, "minutes": "1", "seconds": 0}))
	msg := readUntil(func(m map[string]any) bool { return m["type"] == view.CmdRenderPaymentCode })
	assert.EqualValues(t, 1, msg["amount"])

	require.NoError(t, client.WriteJSON(map[string]any{"type": "start"}))
	msg = readUntil(func(m map[string]any) bool { return m["type"] == "error" })
	assert.Contains(t, msg["text"], "not available")

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("{nope")))
	readUntil(func(m map[string]any) bool { return m["type"] == "error" })

	client.Close()
	waitFor(t, 2*time.Second, func() bool { return manager.Count() == 0 })
}
