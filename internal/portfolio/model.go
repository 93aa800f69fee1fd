package portfolio

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is an amount of one coin held by a user. A user holds at most one
// Holding per coin.
type Holding struct {
	CoinID  string
	Amount  decimal.Decimal
	AddedAt time.Time
}

// Snapshot is the total USD value of a user's holdings at a point in time.
type Snapshot struct {
	Timestamp time.Time
	Value     decimal.Decimal
}

// HoldingsChanged is emitted after every holdings mutation and carries the
// full holdings list.
type HoldingsChanged struct {
	UserID   string    `json:"userId"`
	Holdings []Holding `json:"portfolio"`
}

// MarshalJSON renders the holding with a numeric amount.
func (h Holding) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string      `json:"id"`
		Amount  json.Number `json:"amount"`
		AddedAt time.Time   `json:"addedAt"`
	}{h.CoinID, json.Number(h.Amount.String()), h.AddedAt})
}

// MarshalJSON renders the snapshot with a numeric value.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp time.Time   `json:"timestamp"`
		Value     json.Number `json:"value"`
	}{s.Timestamp, json.Number(s.Value.String())})
}
