package amqp

import (
	"encoding/json"
	"time"

	"libreria/internal/core"
)

// Event types published after a successful store mutation.
const (
	EventRecordAppended = "record.appended"
	EventRecordDeleted  = "record.deleted"
)

// RecordEvent announces a change to the record store. It carries enough to
// log or notify, not the full record.
type RecordEvent struct {
	Type       string    `json:"type"`
	Date       string    `json:"date"`
	NetProfit  float64   `json:"net_profit,omitempty"`
	TotalSales float64   `json:"total_sales,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewAppendedEvent(rec core.DailyRecord) *RecordEvent {
	return &RecordEvent{
		Type:       EventRecordAppended,
		Date:       rec.Date.String(),
		NetProfit:  rec.NetProfit,
		TotalSales: rec.TotalSales,
		Timestamp:  time.Now(),
	}
}

func NewDeletedEvent(d core.Date) *RecordEvent {
	return &RecordEvent{
		Type:      EventRecordDeleted,
		Date:      d.String(),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var ev RecordEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
