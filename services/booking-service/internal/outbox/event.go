package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics emitted by the booking core.
const (
	TopicSlotReserved  = "booking.slot.reserved.v1"
	TopicSlotCancelled = "booking.slot.cancelled.v1"
)
