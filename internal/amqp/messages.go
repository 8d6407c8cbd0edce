package amqp

import (
	"encoding/json"
	"time"

	"saldo/internal/core"
)

// MonthSyncedMessage is published after a month document was written to
// the remote store. Consumers fetch the document itself when they need
// the items.
type MonthSyncedMessage struct {
	Document  string      `json:"document"`
	UserID    string      `json:"userId"`
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	Items     int         `json:"items"`
	Total     core.Money  `json:"total"`
	Paid      core.Money  `json:"paid"`
	Status    core.Status `json:"status"`
	Version   int64       `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewMonthSyncedMessage(k core.MonthKey, d core.MonthDataset, version int64) *MonthSyncedMessage {
	return &MonthSyncedMessage{
		Document:  k.DocumentID(),
		UserID:    k.UserID,
		Year:      k.Year,
		Month:     k.Month,
		Items:     len(d.Items),
		Total:     d.Total,
		Paid:      d.Paid,
		Status:    d.Status,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *MonthSyncedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MonthSyncedMessageFromJSON(data []byte) (*MonthSyncedMessage, error) {
	var msg MonthSyncedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
