package entity

import "time"

// CashBookEntry is one credit posted to the petty-cash book
type CashBookEntry struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	SubjectID    string    `json:"subject_id"`
	AmountCents  int64     `json:"amount_cents"`
	BalanceCents int64     `json:"balance_cents"`
	Memo         string    `json:"memo"`
	CreatedAt    time.Time `json:"created_at"`
}
