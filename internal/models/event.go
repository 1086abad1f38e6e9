package models

import (
	"encoding/json"
	"time"
)

// Issuer event type constants
const (
	EventIssuerUpserted = "ISSUER_UPSERTED"
	EventIssuerDeleted  = "ISSUER_DELETED"
)

// IssuerEvent represents a Kafka event for issuer reference data changes
type IssuerEvent struct {
	EventType  string    `json:"event_type"`
	Issuer     *Issuer   `json:"issuer,omitempty"`
	IssuerCode string    `json:"issuer_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// IngestMessage is the payload of a batch delivered over the ingestion topic
type IngestMessage struct {
	Kind           string          `json:"kind"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Records        json.RawMessage `json:"records"`
}
