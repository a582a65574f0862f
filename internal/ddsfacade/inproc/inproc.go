// Package inproc is the one concrete ddsfacade.Participant implementation
// shipped with this repository: an in-process, dependency-free publish/
// subscribe bus standing in for a real DDS binding.
//
// The writer side does non-blocking, per-subscriber fan-out with drop
// counters on overflow; the reader side uses a bounded, overwrite-oldest
// per-reader buffer to emulate keep-last(n) history. A production build
// swaps this package for a real DDS binding behind the same ddsfacade
// interfaces.
package inproc

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
)

type topicState struct {
	mu      sync.Mutex
	writers map[ddsfacade.GUID]*writer
	readers map[ddsfacade.GUID]*reader
}

// Participant is the in-process bus root. All publishers/subscribers
// created from one Participant share the same topic registry, mirroring
// one DDS domain participant.
type Participant struct {
	mu     sync.Mutex
	topics map[string]*topicState
	log    *logrus.Entry
}

// NewParticipant creates an empty in-process bus.
func NewParticipant() *Participant {
	return &Participant{
		topics: make(map[string]*topicState),
		log:    logrus.WithField("component", "ddsfacade/inproc"),
	}
}

func (p *Participant) topicFor(name string) *topicState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.topics[name]
	if !ok {
		ts = &topicState{writers: make(map[ddsfacade.GUID]*writer), readers: make(map[ddsfacade.GUID]*reader)}
		p.topics[name] = ts
	}
	return ts
}

// CreateTopic registers (or returns the existing) topic by name.
func (p *Participant) CreateTopic(name, typeName string) (ddsfacade.Topic, error) {
	p.topicFor(name)
	return ddsfacade.Topic{Name: name, Type: typeName}, nil
}

// DeleteTopic drops a topic's bookkeeping. Any writers/readers still
// referencing it keep working against their own state but new endpoints
// will start a fresh topicState.
func (p *Participant) DeleteTopic(t ddsfacade.Topic) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.topics, t.Name)
	return nil
}

// CreatePublisher returns a Publisher bound to this participant's registry.
func (p *Participant) CreatePublisher() (ddsfacade.Publisher, error) {
	return &publisher{participant: p}, nil
}

// CreateSubscriber returns a Subscriber bound to this participant's registry.
func (p *Participant) CreateSubscriber() (ddsfacade.Subscriber, error) {
	return &subscriber{participant: p}, nil
}

type publisher struct {
	participant *Participant
}

func (pub *publisher) CreateWriter(topic ddsfacade.Topic, qos ddsfacade.QoS) (ddsfacade.Writer, error) {
	ts := pub.participant.topicFor(topic.Name)
	w := &writer{
		guid:  ddsfacade.NewGUID(),
		topic: topic,
		qos:   qos,
		state: ts,
		log:   pub.participant.log.WithField("topic", topic.Name),
	}
	ts.mu.Lock()
	ts.writers[w.guid] = w
	// A writer that joins a topic which already has readers is immediately
	// matched with each of them, mirroring DDS discovery. The listener may
	// not be registered yet, so remember the count for OnSubscriptionMatched
	// to flush once it is.
	w.pendingMatches = len(ts.readers)
	ts.mu.Unlock()
	return w, nil
}

type subscriber struct {
	participant *Participant
}

func (sub *subscriber) CreateReader(topic ddsfacade.Topic, qos ddsfacade.QoS) (ddsfacade.Reader, error) {
	ts := sub.participant.topicFor(topic.Name)
	depth := qos.HistoryDepth
	if depth <= 0 {
		depth = 1
	}
	r := &reader{
		guid:  ddsfacade.NewGUID(),
		topic: topic,
		depth: depth,
	}
	ts.mu.Lock()
	ts.readers[r.guid] = r
	// Notify every existing writer on this topic that a new reader matched.
	writers := make([]*writer, 0, len(ts.writers))
	for _, w := range ts.writers {
		writers = append(writers, w)
	}
	ts.mu.Unlock()
	for _, w := range writers {
		w.notifyMatched(1)
	}
	return r, nil
}

type writer struct {
	guid     ddsfacade.GUID
	topic    ddsfacade.Topic
	qos      ddsfacade.QoS
	state    *topicState
	log      *logrus.Entry
	mu             sync.Mutex
	listener       ddsfacade.MatchListener
	pendingMatches int
}

func (w *writer) OnSubscriptionMatched(l ddsfacade.MatchListener) {
	w.mu.Lock()
	w.listener = l
	pending := w.pendingMatches
	w.pendingMatches = 0
	w.mu.Unlock()
	if pending > 0 && l != nil {
		l(pending)
	}
}

func (w *writer) notifyMatched(delta int) {
	w.mu.Lock()
	l := w.listener
	w.mu.Unlock()
	if l != nil {
		l(delta)
	}
}

func (w *writer) Write(s ddsfacade.Sample) error {
	w.state.mu.Lock()
	readers := make([]*reader, 0, len(w.state.readers))
	for _, r := range w.state.readers {
		readers = append(readers, r)
	}
	w.state.mu.Unlock()

	for _, r := range readers {
		r.push(s)
	}
	return nil
}

func (w *writer) Delete() error {
	w.state.mu.Lock()
	delete(w.state.writers, w.guid)
	w.state.mu.Unlock()
	w.log.Debug("writer deleted, readers observe liveness loss")
	return nil
}

type reader struct {
	guid  ddsfacade.GUID
	topic ddsfacade.Topic
	depth int

	mu      sync.Mutex
	samples []ddsfacade.Sample
	dropped uint64
}

// push appends a sample, dropping the oldest once the reader's keep-last(n)
// history depth is exceeded — the emulation of DDS history=keep-last(n).
func (r *reader) push(s ddsfacade.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) >= r.depth {
		r.samples = r.samples[1:]
		r.dropped++
	}
	r.samples = append(r.samples, s)
}

func (r *reader) Take() (ddsfacade.Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return ddsfacade.Sample{}, false
	}
	s := r.samples[0]
	r.samples = r.samples[1:]
	return s, true
}

func (r *reader) Delete() error {
	return nil
}
