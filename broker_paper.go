// FILE: broker_paper.go
// Package main – In-memory paper broker (no external dependencies).
//
// Simulates execution at the price the engine hands it, which in backtests
// is the bar close. Order IDs are uuids so paper fills look like real fills
// in logs; the engine keys trades by its own sequential IDs, so randomness
// here never leaks into reports.
package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperBroker fills every order at the requested price.
type PaperBroker struct {
	mu     sync.Mutex
	orders []PlacedOrder
}

func NewPaperBroker() *PaperBroker { return &PaperBroker{} }

func (p *PaperBroker) Name() string { return "paper" }

// PlaceMarket records and "fills" a market order at the given price.
func (p *PaperBroker) PlaceMarket(ctx context.Context, symbol string, side OrderSide, size, price float64) (*PlacedOrder, error) {
	if size <= 0 {
		return nil, errors.New("paper: size must be > 0")
	}
	if price <= 0 {
		return nil, errors.New("paper: price must be > 0")
	}
	o := PlacedOrder{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Side:       side,
		Price:      price,
		Size:       size,
		CreateTime: time.Now().UTC(),
	}
	p.mu.Lock()
	p.orders = append(p.orders, o)
	p.mu.Unlock()
	incOrder(p.Name(), side)
	return &o, nil
}

// OrderCount reports how many fills this broker has recorded.
func (p *PaperBroker) OrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}
