// Package store persists settlement and halt events to postgres. It sits
// behind the event bus so trade history survives restarts and powers
// external P&L review; the trading path never blocks on it.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/bus"
	"main/internal/model"
)

// TradeRecord is one settled (or errored) wager.
type TradeRecord struct {
	ID         uint            `gorm:"primaryKey"`
	OrderID    string          `gorm:"size:64;uniqueIndex"`
	AccountID  string          `gorm:"size:64;index"`
	ContractID string          `gorm:"size:64"`
	Symbol     string          `gorm:"size:32"`
	Contract   string          `gorm:"size:32"`
	Stake      decimal.Decimal `gorm:"type:numeric(18,2)"`
	Profit     decimal.Decimal `gorm:"type:numeric(18,2)"`
	Outcome    string          `gorm:"size:16"`
	HaltReason string          `gorm:"size:32"`
	CreatedAt  time.Time
}

// HaltRecord is one session risk halt.
type HaltRecord struct {
	ID        uint            `gorm:"primaryKey"`
	AccountID string          `gorm:"size:64;index"`
	Reason    string          `gorm:"size:32"`
	Profit    decimal.Decimal `gorm:"type:numeric(18,2)"`
	CreatedAt time.Time
}

// Store writes trade history through a gorm connection.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&TradeRecord{}, &HaltRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate trade history schema")
	}
	return &Store{db: db}, nil
}

// SaveSettlement records one terminal order outcome.
func (s *Store) SaveSettlement(ctx context.Context, ev model.TradeSettled) error {
	rec := TradeRecord{
		OrderID:    ev.OrderID,
		AccountID:  ev.AccountID,
		ContractID: ev.ContractID,
		Symbol:     ev.Symbol,
		Contract:   ev.Contract.WireCode(),
		Stake:      ev.Stake,
		Profit:     ev.Profit,
		Outcome:    ev.Outcome.String(),
	}
	if ev.HaltReason.IsAvailable() {
		rec.HaltReason = ev.HaltReason.String()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "save settlement").With("order", ev.OrderID)
	}
	return nil
}

// SaveHalt records one session halt.
func (s *Store) SaveHalt(ctx context.Context, ev model.SessionHalted) error {
	rec := HaltRecord{
		AccountID: ev.AccountID,
		Reason:    ev.Reason.String(),
		Profit:    ev.Profit,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrap(err, "save halt").With("account", ev.AccountID)
	}
	return nil
}

// RecentTrades returns the newest trades for an account, newest first.
func (s *Store) RecentTrades(ctx context.Context, accountID string, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []TradeRecord
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "query recent trades").With("account", accountID)
	}
	return out, nil
}

// Sink returns a bus handler that persists each event, logging instead of
// failing: history is best-effort from the engine's point of view.
func (s *Store) Sink(ctx context.Context) func(bus.Event) {
	return func(e bus.Event) {
		switch {
		case e.Settled != nil:
			if err := s.SaveSettlement(ctx, *e.Settled); err != nil {
				logs.Errorf("trade history write failed, err: %+v", err)
			}
		case e.Halted != nil:
			if err := s.SaveHalt(ctx, *e.Halted); err != nil {
				logs.Errorf("halt history write failed, err: %+v", err)
			}
		}
	}
}
