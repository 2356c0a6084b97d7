package outbox

import (
	"time"

	otelx "github.com/md-rashed-zaman/billboardrent/libs/otel"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType and the message key is AggregateID.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	TenantID      string
	Payload       []byte
}

const (
	RentalCreated   = "rental.created.v1"
	RentalDeleted   = "rental.deleted.v1"
	ProposalCreated = "proposal.created.v1"
	ProposalUpdated = "proposal.updated.v1"
	ProposalDeleted = "proposal.deleted.v1"
)

// Record is a stored Event awaiting publication.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	TenantID      string
	Payload       []byte
	Trace         otelx.TraceCarrier
	CreatedAt     time.Time
}
