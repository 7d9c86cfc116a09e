package view

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"solarcharge/backend/services/kiosk-service/internal/payment"
)

// Sender delivers an encoded command, typically a websocket connection.
type Sender interface {
	Send(msg []byte)
}

// NewJSONSink encodes every command as JSON and hands it to sender.
func NewJSONSink(sender Sender, logger *zap.Logger) Sink {
	return commandFunc(func(cmd Command) {
		data, err := json.Marshal(cmd)
		if err != nil {
			logger.Warn("failed to encode view command", zap.String("type", cmd.Type), zap.Error(err))
			return
		}
		sender.Send(data)
	})
}

// NewLogSink logs every command at debug level.
func NewLogSink(logger *zap.Logger) Sink {
	return commandFunc(func(cmd Command) {
		if ce := logger.Check(zap.DebugLevel, "view command"); ce != nil {
			fields := []zap.Field{zap.String("type", cmd.Type)}
			if cmd.Stage != "" {
				fields = append(fields, zap.String("stage", string(cmd.Stage)))
			}
			if cmd.Text != "" {
				fields = append(fields, zap.String("text", cmd.Text))
			}
			if cmd.Value != nil {
				fields = append(fields, zap.Bool("value", *cmd.Value))
			}
			ce.Write(fields...)
		}
	})
}

// State is what a page currently shows.
type State struct {
	Stage            Stage         `json:"stage"`
	CountdownText    string        `json:"countdownText"`
	CountdownVisible bool          `json:"countdownVisible"`
	StartEnabled     bool          `json:"startEnabled"`
	Message          string        `json:"message"`
	Severity         Severity      `json:"severity"`
	Connected        bool          `json:"connected"`
	Payment          *payment.Code `json:"payment,omitempty"`
}

// Recorder keeps the command history and the resulting display state.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	state    State
	keep     bool
}

// NewRecorder returns a recorder. With keepHistory false only the state is tracked.
func NewRecorder(keepHistory bool) *Recorder {
	return &Recorder{keep: keepHistory}
}

func (r *Recorder) sink() Sink {
	return commandFunc(r.record)
}

func (r *Recorder) record(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keep {
		r.commands = append(r.commands, cmd)
	}
	switch cmd.Type {
	case CmdShowStage:
		r.state.Stage = cmd.Stage
	case CmdCountdownText:
		r.state.CountdownText = cmd.Text
	case CmdCountdownVisible:
		r.state.CountdownVisible = *cmd.Value
	case CmdStartEnabled:
		r.state.StartEnabled = *cmd.Value
	case CmdStatusMessage:
		r.state.Message = cmd.Text
		r.state.Severity = cmd.Severity
	case CmdConnectivity:
		r.state.Connected = *cmd.Value
	case CmdRenderPaymentCode:
		r.state.Payment = cmd.Code
	}
}

func (r *Recorder) ShowStage(stage Stage)            { r.sink().ShowStage(stage) }
func (r *Recorder) SetCountdownText(text string)     { r.sink().SetCountdownText(text) }
func (r *Recorder) SetCountdownVisible(visible bool) { r.sink().SetCountdownVisible(visible) }
func (r *Recorder) SetStartEnabled(enabled bool)     { r.sink().SetStartEnabled(enabled) }
func (r *Recorder) SetConnectivity(connected bool)   { r.sink().SetConnectivity(connected) }

func (r *Recorder) SetStatusMessage(text string, severity Severity) {
	r.sink().SetStatusMessage(text, severity)
}

func (r *Recorder) RenderPaymentCode(code payment.Code, amount int) {
	r.sink().RenderPaymentCode(code, amount)
}

// State returns the current display state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Commands returns a copy of the recorded history.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Reset drops the recorded history, keeping the state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}

// Count returns how many recorded commands have the given type.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Type == kind {
			n++
		}
	}
	return n
}
