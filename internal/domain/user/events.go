package user

import "time"

type Registered struct {
	UserID ID        `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	At     time.Time `json:"at"`
}

func (e Registered) EventName() string     { return "user.registered" }
func (e Registered) AggregateID() string   { return string(e.UserID) }
func (e Registered) OccurredAt() time.Time { return e.At }
