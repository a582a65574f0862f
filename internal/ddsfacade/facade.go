// Package ddsfacade is the thin, synchronous adapter over a bus's
// publisher/subscriber/topic primitives. A real DDS transport — reliable/
// volatile QoS, topic creation, GUID-based identity — is out of scope for
// this repository; this package defines only the interfaces the
// device-bridge core consumes, so that a production build can bind them to
// a real DDS implementation. The ddsfacade/inproc subpackage is the one
// concrete implementation shipped here, used by tests and by the sample
// CLI's loopback mode.
package ddsfacade

import "github.com/google/uuid"

// GUID identifies a writer or reader the way DDS identifies endpoints.
type GUID = uuid.UUID

// NewGUID allocates a fresh endpoint identity.
func NewGUID() GUID { return uuid.New() }

// Sample is one published record. Payload is a self-describing
// key-value record (see internal/handshake for the message shapes carried
// over it) or raw bytes for frame topics.
type Sample struct {
	Payload []byte
}

// MatchListener is invoked when a reader joins (+1) or leaves (-1) the
// topic a writer is bound to — the Go analogue of FastDDS's
// on_subscription_matched / on_publication_matched. Implementations MUST
// return quickly: bus callbacks run on bus-owned threads and may only set
// flags and notify condition variables.
type MatchListener func(currentCountChange int)

// Writer publishes samples to one topic.
type Writer interface {
	// Write publishes a sample. Returns an error only for local/resource
	// failures; a failed write is a transient bus error that the caller
	// logs and lets the next cycle implicitly retry.
	Write(Sample) error
	// OnSubscriptionMatched registers a listener for reader join/leave
	// events on this writer. At most one listener is kept; registering
	// again replaces it.
	OnSubscriptionMatched(MatchListener)
	// Delete tears down the writer. Readers observe a liveness loss.
	Delete() error
}

// Reader consumes samples from one topic.
type Reader interface {
	// Take returns the next unread sample, or ok=false if none is
	// currently available. Non-blocking.
	Take() (Sample, bool)
	// Delete tears down the reader.
	Delete() error
}

// Topic is a named, typed channel.
type Topic struct {
	Name string
	Type string
}

// Reliability is the delivery guarantee of a topic.
type Reliability int

const (
	Reliable Reliability = iota
	BestEffort
)

// Durability controls whether late-joining readers see history written
// before they joined. Volatile is used everywhere here; TransientLocal
// exists for completeness of the facade surface.
type Durability int

const (
	Volatile Durability = iota
	TransientLocal
)

// QoS is the subset of DDS QoS this package recognizes.
type QoS struct {
	Reliability Reliability
	Durability  Durability
	// HistoryDepth implements history=keep-last(n). Notification and
	// control topics use 10, frame and state topics use 1.
	HistoryDepth int
	// DataSharing, when true, permits shared-memory delivery. Must be
	// false on the broadcast topic to avoid a racy writer/reader
	// handshake during shared-memory setup.
	DataSharing bool
}

// DefaultQoS is reliable/volatile/keep-last(1)/data-sharing-on, the
// baseline for most topics.
func DefaultQoS() QoS {
	return QoS{Reliability: Reliable, Durability: Volatile, HistoryDepth: 1, DataSharing: true}
}

// Publisher creates writers.
type Publisher interface {
	CreateWriter(topic Topic, qos QoS) (Writer, error)
}

// Subscriber creates readers.
type Subscriber interface {
	CreateReader(topic Topic, qos QoS) (Reader, error)
}

// Participant is the bus-level identity hosting publishers/subscribers
// within a domain.
type Participant interface {
	CreatePublisher() (Publisher, error)
	CreateSubscriber() (Subscriber, error)
	CreateTopic(name, typeName string) (Topic, error)
	DeleteTopic(Topic) error
}
