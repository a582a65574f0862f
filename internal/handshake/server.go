package handshake

import (
	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/devicemodel"
)

// notificationQoS is reliable, volatile, keep-last(10).
func notificationQoS() ddsfacade.QoS {
	qos := ddsfacade.DefaultQoS()
	qos.HistoryDepth = 10
	return qos
}

// ServerEndpoint is the server side of the notification topic: it
// announces a device's streams once, and can emit an error notification
// at any later point (protocol violations, resource errors).
//
// Grounded on dds-device-impl.h's construction-time announcement sequence
// and lrs_device_controller's error propagation into the control topic.
type ServerEndpoint struct {
	log       *logrus.Entry
	writer    ddsfacade.Writer
	topicRoot string
}

// NewServerEndpoint creates the notification writer for a device rooted at
// topicRoot.
func NewServerEndpoint(p ddsfacade.Participant, topicRoot string) (*ServerEndpoint, error) {
	topic, err := p.CreateTopic(topicRoot+"/notification", "notification")
	if err != nil {
		return nil, err
	}
	pub, err := p.CreatePublisher()
	if err != nil {
		return nil, err
	}
	w, err := pub.CreateWriter(topic, notificationQoS())
	if err != nil {
		return nil, err
	}
	return &ServerEndpoint{
		log:       logrus.WithField("component", "handshake-server").WithField("topic-root", topicRoot),
		writer:    w,
		topicRoot: topicRoot,
	}, nil
}

// Announce emits device-header, one stream-header per stream (order
// unspecified), and one extrinsics record per known ordered pair. This is
// the server's construction-time announcement sequence.
func (s *ServerEndpoint) Announce(streams []devicemodel.StreamDescriptor, extrinsics map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics) error {
	if err := s.send(Message{ID: DeviceHeader, NStreams: len(streams)}); err != nil {
		return err
	}
	for _, sd := range streams {
		msg := Message{
			ID:                  StreamHeader,
			Name:                sd.Name,
			Type:                string(sd.Kind),
			SensorName:          sd.SensorName,
			DefaultProfileIndex: sd.DefaultProfileIndex,
			Profiles:            sd.Profiles,
			VideoIntrinsics:     sd.VideoIntrinsics,
			MotionIntrinsics:    sd.MotionIntrinsics,
		}
		if err := s.send(msg); err != nil {
			return err
		}
	}
	for key, ext := range extrinsics {
		ext := ext
		msg := Message{ID: Extrinsics, From: key.From, To: key.To, ExtrinsicsRecord: &ext}
		if err := s.send(msg); err != nil {
			return err
		}
	}
	return nil
}

// SendError emits an error notification. Used both for protocol
// violations detected on the control channel and resource errors from the
// stream bridge.
func (s *ServerEndpoint) SendError(text string) error {
	return s.send(Message{ID: Error, ErrorText: text})
}

func (s *ServerEndpoint) send(m Message) error {
	payload, err := Encode(m)
	if err != nil {
		s.log.WithError(err).WithField("id", m.ID).Error("failed to encode notification")
		return err
	}
	if err := s.writer.Write(ddsfacade.Sample{Payload: payload}); err != nil {
		s.log.WithError(err).WithField("id", m.ID).Warn("transient notification write failure")
		return err
	}
	return nil
}
