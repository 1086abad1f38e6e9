package models

import "time"

// Common signal tokens produced by the analytics job. The store does not restrict Signal.Signal to these.
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

// Common timeframe labels
const (
	TimeframeDaily   = "Daily"
	TimeframeWeekly  = "Weekly"
	TimeframeMonthly = "Monthly"
)

// Signal is an externally computed trading recommendation for an issuer at a timeframe and date
type Signal struct {
	ID         int64     `json:"id"`
	IssuerCode string    `json:"issuerCode" validate:"required"`
	Timeframe  string    `json:"timeframe" validate:"required"`
	Signal     string    `json:"signal" validate:"required"`
	Date       Date      `json:"date" validate:"required"`
	CreatedAt  time.Time `json:"createdAt"`
}
