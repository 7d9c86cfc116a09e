package view

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/payment"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakeSender) Send(msg []byte) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func TestJSONSinkEncodesCommands(t *testing.T) {
	sender := &fakeSender{}
	sink := NewJSONSink(sender, zap.NewNop())

	sink.ShowStage(StageCharging)
	sink.SetStartEnabled(false)
	sink.SetStatusMessage("Ready to charge", SeverityInfo)
	sink.RenderPaymentCode(payment.Code{URI: "upi://pay?am=10", Amount: 10}, 10)

	require.Len(t, sender.msgs, 4)
	assert.JSONEq(t, `{"type":"show_stage","stage":"charging"}`, string(sender.msgs[0]))
	assert.JSONEq(t, `{"type":"start_enabled","value":false}`, string(sender.msgs[1]))
	assert.JSONEq(t, `{"type":"status_message","text":"Ready to charge","severity":"info"}`, string(sender.msgs[2]))

	var cmd Command
	require.NoError(t, json.Unmarshal(sender.msgs[3], &cmd))
	assert.Equal(t, CmdRenderPaymentCode, cmd.Type)
	assert.Equal(t, 10, cmd.Amount)
	require.NotNil(t, cmd.Code)
	assert.Equal(t, "upi://pay?am=10", cmd.Code.URI)
}

func TestRecorderTracksState(t *testing.T) {
	rec := NewRecorder(true)

	rec.ShowStage(StageAwaitingPayment)
	rec.RenderPaymentCode(payment.Code{URI: "u", Amount: 5}, 5)
	rec.SetCountdownVisible(true)
	rec.SetCountdownText("00:00:10")
	rec.SetStartEnabled(true)
	rec.SetConnectivity(true)
	rec.SetStatusMessage("pay", SeverityInfo)

	state := rec.State()
	assert.Equal(t, StageAwaitingPayment, state.Stage)
	assert.Equal(t, "00:00:10", state.CountdownText)
	assert.True(t, state.CountdownVisible)
	assert.True(t, state.StartEnabled)
	assert.True(t, state.Connected)
	assert.Equal(t, "pay", state.Message)
	require.NotNil(t, state.Payment)
	assert.Equal(t, 5, state.Payment.Amount)

	assert.Len(t, rec.Commands(), 7)
	assert.Equal(t, 1, rec.Count(CmdStatusMessage))

	rec.Reset()
	assert.Empty(t, rec.Commands())
	assert.Equal(t, StageAwaitingPayment, rec.State().Stage)
}

func TestRecorderWithoutHistory(t *testing.T) {
	rec := NewRecorder(false)
	rec.ShowStage(StageCharging)
	assert.Empty(t, rec.Commands())
	assert.Equal(t, StageCharging, rec.State().Stage)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewRecorder(true), NewRecorder(true)
	sink := Multi(a, b, NewLogSink(zap.NewNop()))

	sink.ShowStage(StageSelectingTime)
	sink.SetConnectivity(false)

	assert.Len(t, a.Commands(), 2)
	assert.Equal(t, a.Commands(), b.Commands())
}
