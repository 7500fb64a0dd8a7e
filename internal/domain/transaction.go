package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is one synthetic transaction record. It is immutable once
// produced by the generator: created, then either serialized or handed to a
// sink, never mutated.
//
// IsAnomaly is diagnostic only. It never appears in any persisted or exported
// form; the warehouse row mapping and the NDJSON export both drop it.
type Transaction struct {
	TransactionID int64
	CustomerID    int
	Date          civil.Date
	Amount        decimal.Decimal // always 2 fractional digits, > 0
	Type          Category
	IsAnomaly     bool
}

// Customer is one synthetic customer record for the warehouse customer
// dimension. Customer ids line up with the id range the transaction
// generator draws from, so joins against transactions always resolve.
type Customer struct {
	CustomerID  int    `json:"customer_id"`
	LoanID      string `json:"loan_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}
