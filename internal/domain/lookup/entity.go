package lookup

import "time"

const (
	MaxInputLength  = 500
	MaxResultLength = 1000
)

// Log is one proxied lookup made on behalf of an account.
type Log struct {
	ID         int64     `db:"id" json:"id"`
	AccountID  int64     `db:"account_id" json:"account_id"`
	APIType    string    `db:"api_type" json:"api_type"`
	InputData  string    `db:"input_data" json:"input_data"`
	Result     string    `db:"result" json:"result"`
	LookedUpAt time.Time `db:"looked_up_at" json:"looked_up_at"`
}

// TypeCount is the number of lookups of one API type.
type TypeCount struct {
	APIType string `db:"api_type" json:"api_type"`
	Count   int64  `db:"count" json:"count"`
}
