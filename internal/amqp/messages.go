package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage announces one ledger mutation. Amounts travel as decimal
// strings so consumers never see binary floating point.
type LedgerEventMessage struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"session_id"`
	TransactionID int64     `json:"transaction_id"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Kind          string    `json:"kind"`
	Income        string    `json:"total_income"`
	Expenses      string    `json:"total_expenses"`
	Balance       string    `json:"balance"`
	Count         int       `json:"count"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RoutingKey is "ledger.<type>", e.g. "ledger.added".
func (m *LedgerEventMessage) RoutingKey(prefix string) string {
	if prefix == "" {
		prefix = "ledger"
	}
	return prefix + "." + m.Type
}
