// Package broadcaster advertises device-presence records to every
// subscriber that joins the broadcast topic, for the lifetime of each
// device, without relying on DDS durability: transient-local would replay
// stale devices to late joiners, volatile drops the sample before they
// arrive. It keeps no history; instead it re-sends the current device set
// whenever a new reader matches any device's writer.
package broadcaster

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/dispatcher"
)

const topicName = "realsense_device_info"

// deviceHandle is the broadcaster's per-device bookkeeping: owns the
// underlying writer and the "unsent-to-new-subscriber" flag.
type deviceHandle struct {
	info      devicemodel.DeviceInfo
	writer    ddsfacade.Writer
	needsSend bool
}

// Broadcaster owns one writer per known device on a single, per-participant
// broadcast topic and replays each device's current record to every new
// subscriber.
type Broadcaster struct {
	log        *logrus.Entry
	dispatcher *dispatcher.Dispatcher
	pub        ddsfacade.Publisher
	topic      ddsfacade.Topic

	mu      sync.Mutex
	cond    *sync.Cond
	handles map[string]*deviceHandle // keyed by serial
	woken   bool
	stopped bool

	announcerDone chan struct{}
}

// New creates a Broadcaster bound to participant p. It does not start
// running until Start is called.
func New(p ddsfacade.Participant) (*Broadcaster, error) {
	topic, err := p.CreateTopic(topicName, "device_info")
	if err != nil {
		return nil, err
	}
	pub, err := p.CreatePublisher()
	if err != nil {
		return nil, err
	}
	b := &Broadcaster{
		log:           logrus.WithField("component", "broadcaster"),
		dispatcher:    dispatcher.New("broadcaster", dispatcher.DefaultBound),
		pub:           pub,
		topic:         topic,
		handles:       make(map[string]*deviceHandle),
		announcerDone: make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Start spawns the dispatcher and the announcer goroutine.
func (b *Broadcaster) Start() {
	b.dispatcher.Start()
	go b.announce()
}

// Stop tears down the announcer and the dispatcher. Safe to call once.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.cond.Broadcast()
	b.mu.Unlock()
	<-b.announcerDone
	b.dispatcher.Stop()
}

// AddDevice registers a device handle, creates its writer, publishes one
// record immediately for any subscriber already matched, and arms the
// device for replay to future subscribers.
func (b *Broadcaster) AddDevice(info devicemodel.DeviceInfo) {
	b.dispatcher.Invoke(func(dispatcher.CancelToken) {
		writer, err := b.pub.CreateWriter(b.topic, broadcastQoS())
		if err != nil {
			b.log.WithError(err).WithField("serial", info.Serial).Error("failed to create broadcast writer")
			return
		}
		handle := &deviceHandle{info: info, writer: writer}
		writer.OnSubscriptionMatched(func(delta int) {
			if delta <= 0 {
				return
			}
			b.mu.Lock()
			handle.needsSend = true
			b.woken = true
			b.cond.Signal()
			b.mu.Unlock()
		})

		b.mu.Lock()
		// The publish below already reaches every reader matched so far, so
		// the replay the listener armed for those readers is not needed.
		handle.needsSend = false
		b.handles[info.Serial] = handle
		b.mu.Unlock()

		b.publish(handle)
	})
}

// RemoveDevice deletes the device's writer; subscribers observe a liveness
// loss on their side.
func (b *Broadcaster) RemoveDevice(serial string) {
	b.dispatcher.Invoke(func(dispatcher.CancelToken) {
		b.mu.Lock()
		handle, ok := b.handles[serial]
		delete(b.handles, serial)
		b.mu.Unlock()
		if !ok {
			return
		}
		if err := handle.writer.Delete(); err != nil {
			b.log.WithError(err).WithField("serial", serial).Warn("failed to delete broadcast writer")
		}
	})
}

// publish marshals and writes a device's current record, logging (not
// failing) on a transport error; the next replay cycle will retry.
func (b *Broadcaster) publish(handle *deviceHandle) {
	payload, err := encode(handle.info)
	if err != nil {
		b.log.WithError(err).WithField("serial", handle.info.Serial).Error("failed to encode device-info record")
		return
	}
	if err := handle.writer.Write(ddsfacade.Sample{Payload: payload}); err != nil {
		b.log.WithError(err).WithField("serial", handle.info.Serial).Warn("transient write failure, next replay will retry")
	}
}

// announce is the dedicated task blocking on the "new subscriber" condition
// variable; it coalesces bursts of match events into one scan of all
// device handles, keeping the actual bus writes on the dispatcher thread.
func (b *Broadcaster) announce() {
	defer close(b.announcerDone)
	for {
		b.mu.Lock()
		for !b.woken && !b.stopped {
			b.cond.Wait()
		}
		if b.stopped {
			b.mu.Unlock()
			return
		}
		b.woken = false
		pending := make([]*deviceHandle, 0, len(b.handles))
		for _, h := range b.handles {
			if h.needsSend {
				h.needsSend = false
				pending = append(pending, h)
			}
		}
		b.mu.Unlock()

		if len(pending) == 0 {
			continue
		}
		b.dispatcher.Invoke(func(dispatcher.CancelToken) {
			for _, h := range pending {
				b.publish(h)
			}
		})
	}
}

// broadcastQoS is reliable, volatile, with data-sharing off: data-sharing
// must be off on this topic because the DDS shared-memory handshake races
// with the first sample delivery.
func broadcastQoS() ddsfacade.QoS {
	qos := ddsfacade.DefaultQoS()
	qos.DataSharing = false
	return qos
}
