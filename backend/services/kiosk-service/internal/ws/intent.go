package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Intent types sent by the kiosk page.
const (
	IntentRequestDuration = "request_duration"
	IntentConfirmPayment  = "confirm_payment"
	IntentStart           = "start"
	IntentStop            = "stop"
)

// Field is a form value that may arrive as a JSON string or number.
type Field string

// UnmarshalJSON accepts "12", 12 and null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("ws: bad field %s: %w", data, err)
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ws: bad field %s: %w", data, err)
	}
	*f = Field(n.String())
	return nil
}

// Intent is one user action from the page.
type Intent struct {
	Type    string `json:"type"`
	Hours   Field  `json:"hours,omitempty"`
	Minutes Field  `json:"minutes,omitempty"`
	Seconds Field  `json:"seconds,omitempty"`
}

// ParseIntent decodes a raw websocket message.
func ParseIntent(raw []byte) (Intent, error) {
	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return Intent{}, fmt.Errorf("ws: decode intent: %w", err)
	}
	if in.Type == "" {
		return Intent{}, fmt.Errorf("ws: intent type is required")
	}
	return in, nil
}

// IntentHandler applies intents for one connection.
type IntentHandler interface {
	HandleIntent(ctx context.Context, intent Intent) error
}

// Binder creates the handler for a freshly upgraded connection. ctx ends when the
// connection closes.
type Binder interface {
	Bind(ctx context.Context, conn *Connection) (IntentHandler, error)
}
