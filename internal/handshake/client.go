package handshake

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/taxonomy"
)

// Watchdog is the wall-clock deadline from entry into WaitDeviceHeader to
// DONE.
const Watchdog = 30 * time.Second

// PollInterval is how often the client checks the notification reader for
// unread messages while waiting on the watchdog. The first check happens
// as soon as Run starts.
const PollInterval = time.Second

// State is the client-side handshake state machine.
type State int

const (
	WaitDeviceHeader State = iota
	WaitProfiles
	Done
)

func (s State) String() string {
	switch s {
	case WaitDeviceHeader:
		return "WAIT_DEVICE_HEADER"
	case WaitProfiles:
		return "WAIT_PROFILES"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ClientEndpoint consumes a device's notification topic and builds a local
// mirror of its streams and extrinsics.
//
// Grounded on dds-device-impl.h's init(): a 30s timer plus a
// wait_for_unread_message(1s) poll loop, rendered here as a ticker guarded
// by a 30s timer.
type ClientEndpoint struct {
	log    *logrus.Entry
	reader ddsfacade.Reader

	state      State
	nStreams   int
	streams    map[string]devicemodel.StreamDescriptor
	order      []string
	extrinsics map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics
}

// NewClientEndpoint subscribes to the notification topic rooted at
// topicRoot.
func NewClientEndpoint(p ddsfacade.Participant, topicRoot string) (*ClientEndpoint, error) {
	topic, err := p.CreateTopic(topicRoot+"/notification", "notification")
	if err != nil {
		return nil, err
	}
	sub, err := p.CreateSubscriber()
	if err != nil {
		return nil, err
	}
	r, err := sub.CreateReader(topic, notificationQoS())
	if err != nil {
		return nil, err
	}
	return &ClientEndpoint{
		log:        logrus.WithField("component", "handshake-client").WithField("topic-root", topicRoot),
		reader:     r,
		state:      WaitDeviceHeader,
		streams:    make(map[string]devicemodel.StreamDescriptor),
		extrinsics: make(map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics),
	}, nil
}

// State returns the current state machine state.
func (c *ClientEndpoint) State() State { return c.state }

// Streams returns the streams discovered so far, in the order their
// stream-header records arrived.
func (c *ClientEndpoint) Streams() []devicemodel.StreamDescriptor {
	out := make([]devicemodel.StreamDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.streams[name])
	}
	return out
}

// Extrinsics returns the extrinsics discovered so far, keyed by ordered
// stream pair.
func (c *ClientEndpoint) Extrinsics() map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics {
	return c.extrinsics
}

// Run drives the handshake to completion or failure. It returns nil once
// State() == Done and every notification already available has been
// consumed (so an extrinsics record or an extra stream-header sent with the
// announcement is seen), or a *taxonomy.Error (Timeout on watchdog expiry,
// BadRequest on any protocol violation) otherwise. ctx cancellation is
// reported as taxonomy.Internal.
func (c *ClientEndpoint) Run(ctx context.Context) error {
	deadline := time.NewTimer(Watchdog)
	defer deadline.Stop()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	immediate := make(chan time.Time, 1)
	immediate <- time.Now()
	var poll <-chan time.Time = immediate

	for {
		select {
		case <-ctx.Done():
			return taxonomy.New(taxonomy.Internal, "handshake.client.Run", ctx.Err())
		case <-deadline.C:
			return taxonomy.New(taxonomy.Timeout, "handshake.client.Run", errors.New("handshake watchdog expired"))
		case <-poll:
			poll = ticker.C
			for {
				sample, ok := c.reader.Take()
				if !ok {
					break
				}
				msg, err := DecodeMessage(sample.Payload)
				if err != nil {
					c.log.WithError(err).Warn("dropped malformed notification")
					continue
				}
				if _, err := c.handle(msg); err != nil {
					return err
				}
			}
			if c.state == Done {
				return nil
			}
		}
	}
}

func (c *ClientEndpoint) handle(msg Message) (done bool, err error) {
	switch c.state {
	case WaitDeviceHeader:
		if msg.ID != DeviceHeader {
			c.log.WithField("id", msg.ID).Warn("unexpected message while waiting for device-header")
			return false, nil
		}
		c.nStreams = msg.NStreams
		if c.nStreams == 0 {
			c.state = Done
			return true, nil
		}
		c.state = WaitProfiles
		return false, nil

	case WaitProfiles:
		switch msg.ID {
		case StreamHeader:
			return c.handleStreamHeader(msg)
		case Extrinsics:
			c.recordExtrinsics(msg)
			return false, nil
		default:
			return false, taxonomy.New(taxonomy.BadRequest, "handshake.client.handle",
				fmt.Errorf("protocol violation: expected stream-header, got %q", msg.ID))
		}

	case Done:
		switch msg.ID {
		case Extrinsics:
			c.recordExtrinsics(msg)
		case StreamHeader:
			return c.handleStreamHeader(msg)
		}
		return true, nil

	default:
		return true, nil
	}
}

func (c *ClientEndpoint) handleStreamHeader(msg Message) (bool, error) {
	if len(c.streams) >= c.nStreams {
		return false, taxonomy.New(taxonomy.BadRequest, "handshake.client.handleStreamHeader",
			fmt.Errorf("extra stream-header beyond n-streams=%d", c.nStreams))
	}
	if _, exists := c.streams[msg.Name]; exists {
		return false, taxonomy.New(taxonomy.BadRequest, "handshake.client.handleStreamHeader",
			fmt.Errorf("duplicate stream name %q", msg.Name))
	}
	kind := devicemodel.StreamKind(msg.Type)
	if !devicemodel.ValidStreamKind(kind) {
		return false, taxonomy.New(taxonomy.BadRequest, "handshake.client.handleStreamHeader",
			fmt.Errorf("unknown stream type %q", msg.Type))
	}
	if msg.DefaultProfileIndex < 0 || msg.DefaultProfileIndex >= len(msg.Profiles) {
		return false, taxonomy.New(taxonomy.BadRequest, "handshake.client.handleStreamHeader",
			fmt.Errorf("default-profile-index %d out of range for %d profiles", msg.DefaultProfileIndex, len(msg.Profiles)))
	}

	c.streams[msg.Name] = devicemodel.StreamDescriptor{
		Name:                msg.Name,
		Kind:                kind,
		SensorName:          msg.SensorName,
		Profiles:            msg.Profiles,
		DefaultProfileIndex: msg.DefaultProfileIndex,
		VideoIntrinsics:     msg.VideoIntrinsics,
		MotionIntrinsics:    msg.MotionIntrinsics,
	}
	c.order = append(c.order, msg.Name)

	if len(c.streams) == c.nStreams {
		c.state = Done
		return true, nil
	}
	return false, nil
}

func (c *ClientEndpoint) recordExtrinsics(msg Message) {
	if msg.ExtrinsicsRecord == nil {
		return
	}
	c.extrinsics[devicemodel.ExtrinsicsKey{From: msg.From, To: msg.To}] = *msg.ExtrinsicsRecord
}
