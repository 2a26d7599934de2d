package gate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/tablesync/go/internal/models"
)

// Ack is the server's direct response to a single request.
type Ack struct {
	OK        bool              `json:"ok"`
	Error     string            `json:"error,omitempty"`
	Message   json.RawMessage   `json:"message,omitempty"`
	Duplicate bool              `json:"duplicate,omitempty"`
	Table     *models.Table     `json:"table,omitempty"`
	State     *models.GameState `json:"state,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseAck decodes an acknowledgment payload, keeping the raw bytes for
// event-specific fields.
func ParseAck(data json.RawMessage) (Ack, error) {
	var ack Ack
	if len(data) == 0 {
		return ack, errors.New("empty ack")
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return ack, fmt.Errorf("unmarshal ack: %w", err)
	}
	ack.Raw = data
	return ack, nil
}

// Reason returns the server's human-readable explanation for a failure. Some
// handlers reply with "error", others with a string "message".
func (a Ack) Reason() string {
	if a.Error != "" {
		return a.Error
	}
	var text string
	if len(a.Message) > 0 && json.Unmarshal(a.Message, &text) == nil {
		return text
	}
	return ""
}

// Decode unmarshals the raw acknowledgment into v.
func (a Ack) Decode(v any) error {
	if len(a.Raw) == 0 {
		return errors.New("ack has no payload")
	}
	return json.Unmarshal(a.Raw, v)
}
