// FILE: broker.go
// Package main – Execution and market-data abstractions.
//
// This file defines the minimal surfaces the trading loop needs:
//   • Broker: place market orders (paper or real)
//   • Feed: fetch recent candles for the live loop
//   • Common types: OrderSide, PlacedOrder
//
// Concrete implementations:
//   • broker_paper.go – in-memory fills, used by backtests and dry runs
//   • live.go         – httpFeed, a thin JSON candle feed client
//
// Real exchange connectors implement the same two interfaces out of tree.
package main

import (
	"context"
	"time"
)

// OrderSide is the side of a trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PlacedOrder is a normalized view of a filled market order.
type PlacedOrder struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Price      float64 // average/assumed execution price
	Size       float64 // filled units
	CreateTime time.Time
}

// Broker executes orders. The engine treats fills as immediate; partial
// fills are a connector concern.
type Broker interface {
	Name() string
	PlaceMarket(ctx context.Context, symbol string, side OrderSide, size, price float64) (*PlacedOrder, error)
}

// Feed supplies candles to the live loop, newest last.
type Feed interface {
	Name() string
	RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}
