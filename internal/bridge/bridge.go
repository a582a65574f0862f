// Package bridge arbitrates between declarative client intent — a desired
// set of active profiles per stream — and the imperative camera SDK calls
// (open+start, stop+close) each owning sensor requires. The camera SDK
// requires every profile opened on one sensor to be opened together, and
// a sensor to be stopped and closed before it can be reopened with a
// different profile set.
package bridge

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/taxonomy"
)

// SensorState is a sensor's position in the CLOSED/OPEN/STREAMING machine.
type SensorState int

const (
	Closed SensorState = iota
	Open
	Streaming
)

func (s SensorState) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case Streaming:
		return "STREAMING"
	default:
		return "UNKNOWN"
	}
}

// OnStartSensor imperatively opens and starts a sensor with the given
// per-stream profiles. An error reverts the sensor to CLOSED and triggers
// OnError.
type OnStartSensor func(sensorName string, profiles devicemodel.ActiveProfileSet) error

// OnStopSensor imperatively stops and closes a sensor.
type OnStopSensor func(sensorName string)

// OnError reports a bridge-detected failure as a control-channel error
// notification.
type OnError func(message string)

type sensorEntry struct {
	name      string
	state     SensorState
	committed devicemodel.ActiveProfileSet
}

// Bridge is the per-device sensor arbiter. One Bridge exists per device
// server and is driven exclusively from that server's dispatcher.
type Bridge struct {
	log *logrus.Entry

	mu           sync.Mutex
	streamSensor map[string]string // stream name -> owning sensor name
	sensors      map[string]*sensorEntry
	pending      devicemodel.ActiveProfileSet // stream name -> requested profile

	onStart OnStartSensor
	onStop  OnStopSensor
	onError OnError
}

// New builds a Bridge over the given streams, all sensors starting CLOSED.
func New(streams []devicemodel.StreamDescriptor, onStart OnStartSensor, onStop OnStopSensor, onError OnError) *Bridge {
	b := &Bridge{
		log:          logrus.WithField("component", "bridge"),
		streamSensor: make(map[string]string),
		sensors:      make(map[string]*sensorEntry),
		pending:      make(devicemodel.ActiveProfileSet),
		onStart:      onStart,
		onStop:       onStop,
		onError:      onError,
	}
	for _, sd := range streams {
		b.streamSensor[sd.Name] = sd.SensorName
		if _, ok := b.sensors[sd.SensorName]; !ok {
			b.sensors[sd.SensorName] = &sensorEntry{name: sd.SensorName, state: Closed, committed: devicemodel.ActiveProfileSet{}}
		}
	}
	return b
}

// Open adds streamName/profile to the pending active set. Fails with
// NotFound if streamName was never declared in a stream-header.
func (b *Bridge) Open(streamName string, profile devicemodel.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streamSensor[streamName]; !ok {
		return taxonomy.New(taxonomy.NotFound, "bridge.Open", errUnknownStream(streamName))
	}
	b.pending[streamName] = profile
	return nil
}

// Close removes streamName from the pending set. A no-op if it wasn't
// pending.
func (b *Bridge) Close(streamName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, streamName)
}

// Reset clears the pending set entirely.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(devicemodel.ActiveProfileSet)
}

// IsStreaming reports whether streamName's owning sensor is currently
// STREAMING with that stream in its committed set.
func (b *Bridge) IsStreaming(streamName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sensorName, ok := b.streamSensor[streamName]
	if !ok {
		return false
	}
	sensor := b.sensors[sensorName]
	if sensor.state != Streaming {
		return false
	}
	_, active := sensor.committed[streamName]
	return active
}

// SensorState reports a sensor's current state, for tests and diagnostics.
func (b *Bridge) SensorState(sensorName string) SensorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sensors[sensorName]; ok {
		return s.state
	}
	return Closed
}

// Commit reconciles every sensor's committed set against the pending set:
// unchanged sensors are untouched (idempotent no-op), a sensor whose
// desired set differs is stopped (if not already CLOSED) then restarted
// with its new set, or left CLOSED if its desired set is empty. Each
// sensor transitions atomically; order across sensors is unspecified.
func (b *Bridge) Commit() {
	b.mu.Lock()
	desiredBySensor := make(map[string]devicemodel.ActiveProfileSet)
	for stream, profile := range b.pending {
		sensorName := b.streamSensor[stream]
		set, ok := desiredBySensor[sensorName]
		if !ok {
			set = devicemodel.ActiveProfileSet{}
			desiredBySensor[sensorName] = set
		}
		set[stream] = profile
	}

	type transition struct {
		sensor  *sensorEntry
		desired devicemodel.ActiveProfileSet
	}
	var toTransition []transition
	for name, sensor := range b.sensors {
		desired := desiredBySensor[name]
		if profileSetsEqual(sensor.committed, desired) {
			continue
		}
		toTransition = append(toTransition, transition{sensor: sensor, desired: desired})
	}
	b.mu.Unlock()

	for _, t := range toTransition {
		b.transitionSensor(t.sensor, t.desired)
	}
}

func (b *Bridge) transitionSensor(sensor *sensorEntry, desired devicemodel.ActiveProfileSet) {
	b.mu.Lock()
	wasOpen := sensor.state != Closed
	sensor.state = Closed
	sensor.committed = devicemodel.ActiveProfileSet{}
	b.mu.Unlock()

	if wasOpen && b.onStop != nil {
		b.onStop(sensor.name)
	}

	if len(desired) == 0 {
		return
	}

	b.mu.Lock()
	sensor.state = Open
	b.mu.Unlock()

	var err error
	if b.onStart != nil {
		err = b.onStart(sensor.name, desired)
	}

	b.mu.Lock()
	if err != nil {
		sensor.state = Closed
		sensor.committed = devicemodel.ActiveProfileSet{}
	} else {
		sensor.state = Streaming
		sensor.committed = desired
	}
	b.mu.Unlock()

	if err != nil && b.onError != nil {
		b.onError(err.Error())
	}
}

func profileSetsEqual(a, b devicemodel.ActiveProfileSet) bool {
	if len(a) != len(b) {
		return false
	}
	for stream, profile := range a {
		other, ok := b[stream]
		if !ok || other != profile {
			return false
		}
	}
	return true
}

type errUnknownStream string

func (e errUnknownStream) Error() string { return "unknown stream: " + string(e) }
