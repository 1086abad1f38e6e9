package models

import "time"

// HistoricalDataPoint is one trading day's statistics for one issuer.
// The numeric fields hold the feed's text verbatim; use the numeric package to interpret them.
type HistoricalDataPoint struct {
	ID            int64     `json:"id"`
	IssuerCode    string    `json:"issuerCode" validate:"required"`
	Date          Date      `json:"date" validate:"required"`
	LastPrice     string    `json:"lastPrice"`
	MaxPrice      string    `json:"maxPrice"`
	MinPrice      string    `json:"minPrice"`
	AvgPrice      string    `json:"avgPrice"`
	PercentChange string    `json:"percentChange"`
	Quantity      string    `json:"quantity"`
	TurnoverBest  string    `json:"turnoverBest"`
	TotalTurnover string    `json:"totalTurnover"`
	CreatedAt     time.Time `json:"createdAt"`
}
