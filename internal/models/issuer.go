package models

import "time"

// Issuer represents a tradable instrument listed on the exchange, keyed by its ticker code
type Issuer struct {
	Code      string    `json:"code" validate:"required,max=16"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
