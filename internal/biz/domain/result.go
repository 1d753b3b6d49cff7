package domain

// Outcome classifies what happened to one RawEvent
type Outcome string

const (
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNotSignal     Outcome = "not_signal"
	OutcomeQueued        Outcome = "queued"
	OutcomeAlreadyQueued Outcome = "already_queued"
	OutcomeError         Outcome = "error"
)

// ProcessResult is returned by the pipeline for every event
type ProcessResult struct {
	Outcome Outcome
	Key     string
	Text    string
	Evicted *QueueEntry
	Err     error
}

// DeliveryStatus classifies the outcome of a delivery attempt
type DeliveryStatus string

const (
	DeliveryDelivered        DeliveryStatus = "delivered"
	DeliveryNoToken          DeliveryStatus = "no_token"
	DeliveryRejected         DeliveryStatus = "rejected"
	DeliveryRoutingExhausted DeliveryStatus = "routing_exhausted"
	DeliveryUnauthorized     DeliveryStatus = "unauthorized"
	DeliveryTransport        DeliveryStatus = "transport"
)

// DeliveryResult describes one Deliver call
type DeliveryResult struct {
	Status   DeliveryStatus
	Room     string // routing key that was accepted
	Attempts int    // convert calls made
	Err      error
}

// OK reports whether the converter accepted the signal
func (r DeliveryResult) OK() bool {
	return r.Status == DeliveryDelivered
}
