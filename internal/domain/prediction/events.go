package prediction

import "time"

type Created struct {
	RecordID    string    `json:"record_id"`
	UserID      string    `json:"user_id"`
	Verdict     Verdict   `json:"verdict"`
	Probability float64   `json:"probability"`
	HorizonDays int       `json:"horizon_days"`
	At          time.Time `json:"at"`
}

func (e Created) EventName() string     { return "prediction.created" }
func (e Created) AggregateID() string   { return e.RecordID }
func (e Created) OccurredAt() time.Time { return e.At }
