package model

import (
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// TradeSettled is emitted to persistence/notification collaborators after
// every terminal order outcome.
type TradeSettled struct {
	AccountID  string
	OrderID    string
	ContractID string
	Symbol     string
	Contract   enum.ContractType
	Stake      decimal.Decimal
	Profit     decimal.Decimal
	Outcome    enum.Outcome
	// HaltReason is set when this settlement also halted the session.
	HaltReason enum.HaltReason
}

// SessionHalted is emitted when a session hits a risk limit and goes
// inactive until externally reactivated.
type SessionHalted struct {
	AccountID string
	Reason    enum.HaltReason
	Profit    decimal.Decimal
}
