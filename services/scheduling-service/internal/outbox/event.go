package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the scheduling service. The notifier consuming these
// owns confirmation emails; this service only records that something happened.
const (
	EventAppointmentBooked    = "scheduling.appointment.booked.v1"
	EventAppointmentUpdated   = "scheduling.appointment.updated.v1"
	EventAppointmentCancelled = "scheduling.appointment.cancelled.v1"
)
