// Package deviceserver wires one device's handshake endpoint, stream
// bridge, control channel, and frame router together behind that device's
// own dispatcher: the stream bridge and control-channel handling for a
// device run exclusively on that device's single-consumer dispatcher.
package deviceserver

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/bridge"
	"github.com/rsdds/device-bridge/internal/control"
	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/devicesdk"
	"github.com/rsdds/device-bridge/internal/dispatcher"
	"github.com/rsdds/device-bridge/internal/framepath"
	"github.com/rsdds/device-bridge/internal/handshake"
)

// controlQoS is reliable, volatile, keep-last(10).
func controlQoS() ddsfacade.QoS {
	qos := ddsfacade.DefaultQoS()
	qos.HistoryDepth = 10
	return qos
}

// pollInterval governs how often the device server checks the control
// reader for unread requests. Control messages have no protocol-level
// timeout, so this is purely a responsiveness knob, distinct from the
// handshake's 30s-bounded 1s poll.
const pollInterval = 20 * time.Millisecond

// Server owns everything needed to serve one attached device: its
// notification announcer, control-channel handler, stream bridge, and
// frame router. Control requests, and the bridge transitions they drive,
// are serialized onto one dispatcher; frames are routed on the sensor's
// own frame-callback goroutines.
type Server struct {
	log        *logrus.Entry
	dispatcher *dispatcher.Dispatcher
	device     devicesdk.Device
	sensors    map[string]devicesdk.Sensor

	handshakeSrv  *handshake.ServerEndpoint
	bridge        *bridge.Bridge
	control       *control.Server
	router        *framepath.Router
	controlReader ddsfacade.Reader

	stopPoll chan struct{}
}

// New builds and announces a device server for device over participant p.
func New(p ddsfacade.Participant, device devicesdk.Device) (*Server, error) {
	info := device.Info()
	topicRoot := info.TopicRoot

	handshakeSrv, err := handshake.NewServerEndpoint(p, topicRoot)
	if err != nil {
		return nil, err
	}

	controlTopic, err := p.CreateTopic(topicRoot+"/control", "control")
	if err != nil {
		return nil, err
	}
	sub, err := p.CreateSubscriber()
	if err != nil {
		return nil, err
	}
	controlReader, err := sub.CreateReader(controlTopic, controlQoS())
	if err != nil {
		return nil, err
	}

	sensorsByName := make(map[string]devicesdk.Sensor)
	for _, s := range device.Sensors() {
		sensorsByName[s.Name()] = s
	}

	s := &Server{
		log:           logrus.WithField("component", "device-server").WithField("topic-root", topicRoot),
		device:        device,
		sensors:       sensorsByName,
		handshakeSrv:  handshakeSrv,
		controlReader: controlReader,
		dispatcher:    dispatcher.New("device-"+info.Serial, dispatcher.DefaultBound),
		stopPoll:      make(chan struct{}),
	}

	router := framepath.NewRouter(nil, false, nil)
	s.router = router

	streams := device.Streams()
	s.bridge = bridge.New(streams, s.onStartSensor, s.onStopSensor, s.onError)
	router.SetStreaming(s.bridge)
	s.control = control.NewServer(streams, s.bridge, handshakeSrv)

	pub, err := p.CreatePublisher()
	if err != nil {
		return nil, err
	}
	anyMetadata := false
	for _, sd := range streams {
		writer, err := pub.CreateWriter(ddsfacade.Topic{Name: topicRoot + "/" + sd.Name, Type: "frame"}, ddsfacade.DefaultQoS())
		if err != nil {
			return nil, err
		}
		router.AddStreamWriter(sd.Name, writer)
		if sd.MetadataEnabled {
			anyMetadata = true
		}
	}
	if anyMetadata {
		metaQoS := ddsfacade.DefaultQoS()
		metaQoS.HistoryDepth = 10
		metaWriter, err := pub.CreateWriter(ddsfacade.Topic{Name: topicRoot + "/metadata", Type: "metadata"}, metaQoS)
		if err != nil {
			return nil, err
		}
		router.SetMetadata(true, metaWriter)
	}

	if err := handshakeSrv.Announce(streams, device.Extrinsics()); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the dispatcher and the control-channel poll loop, blocking
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.dispatcher.Start()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.dispatcher.Stop()
			return
		case <-s.stopPoll:
			s.dispatcher.Stop()
			return
		case <-ticker.C:
			for {
				sample, ok := s.controlReader.Take()
				if !ok {
					break
				}
				msg, err := handshake.DecodeMessage(sample.Payload)
				if err != nil {
					s.log.WithError(err).Warn("dropped malformed control message")
					continue
				}
				s.dispatcher.Invoke(s.dispatchControl(msg))
			}
		}
	}
}

// Stop signals Run to return.
func (s *Server) Stop() { close(s.stopPoll) }

func (s *Server) dispatchControl(msg handshake.Message) dispatcher.Task {
	return func(dispatcher.CancelToken) {
		var err error
		switch msg.ID {
		case handshake.OpenStreams:
			err = s.control.HandleOpenStreams(msg)
		case handshake.CloseStreams:
			err = s.control.HandleCloseStreams(msg)
		case handshake.SetOption:
			err = s.control.HandleSetOption(msg)
		case handshake.QueryOption:
			_, err = s.control.HandleQueryOption(msg)
		default:
			s.log.WithField("id", msg.ID).Warn("control message with unknown id")
			return
		}
		if err != nil {
			s.log.WithError(err).WithField("id", msg.ID).Warn("control request failed")
		}
	}
}

func (s *Server) onStartSensor(sensorName string, profiles devicemodel.ActiveProfileSet) error {
	sensor, ok := s.sensors[sensorName]
	if !ok {
		return errUnknownSensor(sensorName)
	}
	if err := sensor.Open(profiles); err != nil {
		return err
	}
	return sensor.Start(func(frame devicesdk.Frame) {
		s.router.Route(frame)
	})
}

func (s *Server) onStopSensor(sensorName string) {
	sensor, ok := s.sensors[sensorName]
	if !ok {
		return
	}
	sensor.Stop()
	sensor.Close()
}

func (s *Server) onError(message string) {
	if err := s.handshakeSrv.SendError(message); err != nil {
		s.log.WithError(err).Warn("failed to relay bridge error as a notification")
	}
}

type errUnknownSensor string

func (e errUnknownSensor) Error() string { return "unknown sensor: " + string(e) }
