package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// Order is one submitted wager. ContractID stays empty until the
// counterparty accepts the buy.
type Order struct {
	ID         string
	AccountID  string
	Symbol     string
	Contract   enum.ContractType
	Barrier    string
	Duration   int
	Stake      decimal.Decimal
	QuoteID    string
	QuotePrice decimal.Decimal
	Payout     decimal.Decimal
	ContractID string
	Status     enum.OrderStatus
	Profit     decimal.Decimal
	PlacedAt   time.Time
	SettledAt  time.Time
}
