// Package view defines the display commands the session controller pushes out and
// the sinks that deliver them.
package view

import "solarcharge/backend/services/kiosk-service/internal/payment"

// Stage is one of the three screens the kiosk shows.
type Stage string

const (
	StageSelectingTime   Stage = "selecting_time"
	StageAwaitingPayment Stage = "awaiting_payment"
	StageCharging        Stage = "charging"
)

// Severity of a status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Sink receives display commands. Implementations must not call back into the
// session controller synchronously.
type Sink interface {
	ShowStage(stage Stage)
	SetCountdownText(text string)
	SetCountdownVisible(visible bool)
	SetStartEnabled(enabled bool)
	SetStatusMessage(text string, severity Severity)
	SetConnectivity(connected bool)
	RenderPaymentCode(code payment.Code, amount int)
}

// Command types, as sent over the wire.
const (
	CmdShowStage         = "show_stage"
	CmdCountdownText     = "countdown_text"
	CmdCountdownVisible  = "countdown_visible"
	CmdStartEnabled      = "start_enabled"
	CmdStatusMessage     = "status_message"
	CmdConnectivity      = "connectivity"
	CmdRenderPaymentCode = "payment_code"
)

// Command is a single display instruction.
type Command struct {
	Type     string        `json:"type"`
	Stage    Stage         `json:"stage,omitempty"`
	Text     string        `json:"text,omitempty"`
	Severity Severity      `json:"severity,omitempty"`
	Value    *bool         `json:"value,omitempty"`
	Code     *payment.Code `json:"code,omitempty"`
	Amount   int           `json:"amount,omitempty"`
}

func boolCmd(kind string, v bool) Command {
	return Command{Type: kind, Value: &v}
}

// commandFunc adapts a Command consumer into a Sink.
type commandFunc func(Command)

func (f commandFunc) ShowStage(stage Stage) {
	f(Command{Type: CmdShowStage, Stage: stage})
}

func (f commandFunc) SetCountdownText(text string) {
	f(Command{Type: CmdCountdownText, Text: text})
}

func (f commandFunc) SetCountdownVisible(visible bool) {
	f(boolCmd(CmdCountdownVisible, visible))
}

func (f commandFunc) SetStartEnabled(enabled bool) {
	f(boolCmd(CmdStartEnabled, enabled))
}

func (f commandFunc) SetStatusMessage(text string, severity Severity) {
	f(Command{Type: CmdStatusMessage, Text: text, Severity: severity})
}

func (f commandFunc) SetConnectivity(connected bool) {
	f(boolCmd(CmdConnectivity, connected))
}

func (f commandFunc) RenderPaymentCode(code payment.Code, amount int) {
	f(Command{Type: CmdRenderPaymentCode, Code: &code, Amount: amount})
}

// Multi fans every command out to all sinks in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) ShowStage(stage Stage) {
	for _, s := range m {
		s.ShowStage(stage)
	}
}

func (m multiSink) SetCountdownText(text string) {
	for _, s := range m {
		s.SetCountdownText(text)
	}
}

func (m multiSink) SetCountdownVisible(visible bool) {
	for _, s := range m {
		s.SetCountdownVisible(visible)
	}
}

func (m multiSink) SetStartEnabled(enabled bool) {
	for _, s := range m {
		s.SetStartEnabled(enabled)
	}
}

func (m multiSink) SetStatusMessage(text string, severity Severity) {
	for _, s := range m {
		s.SetStatusMessage(text, severity)
	}
}

func (m multiSink) SetConnectivity(connected bool) {
	for _, s := range m {
		s.SetConnectivity(connected)
	}
}

func (m multiSink) RenderPaymentCode(code payment.Code, amount int) {
	for _, s := range m {
		s.RenderPaymentCode(code, amount)
	}
}
