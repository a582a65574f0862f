// Package control implements the server side of the control channel:
// decoding open-streams/close-streams/set-option/query-option requests and
// applying them to the stream bridge and the device's option set.
package control

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/bridge"
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/handshake"
	"github.com/rsdds/device-bridge/internal/taxonomy"
)

type optionKey struct {
	Stream string
	Name   string
}

// ErrorNotifier is the subset of handshake.ServerEndpoint the control
// channel needs to report a protocol or resource failure back to the
// client, decoupled here so tests can supply a stub.
type ErrorNotifier interface {
	SendError(text string) error
}

// Server applies decoded control-channel requests to a device's stream
// bridge and options, grounded on lrs_device_controller::start_streaming /
// set_option / query_option in lrs-device-controller.cpp.
type Server struct {
	log      *logrus.Entry
	bridge   *bridge.Bridge
	streams  map[string]devicemodel.StreamDescriptor
	options  map[optionKey]*devicemodel.Option
	notifier ErrorNotifier
}

// NewServer builds a control Server over streams (used to resolve stream
// names, compatible profiles, and per-stream options) and br, the stream
// bridge to drive. notifier receives error notifications for
// protocol/resource failures.
func NewServer(streams []devicemodel.StreamDescriptor, br *bridge.Bridge, notifier ErrorNotifier) *Server {
	s := &Server{
		log:      logrus.WithField("component", "control-server"),
		bridge:   br,
		streams:  make(map[string]devicemodel.StreamDescriptor),
		options:  make(map[optionKey]*devicemodel.Option),
		notifier: notifier,
	}
	for _, sd := range streams {
		s.streams[sd.Name] = sd
		for i := range sd.Options {
			opt := sd.Options[i]
			s.options[optionKey{Stream: opt.OwnerStream, Name: opt.Name}] = &opt
		}
	}
	return s
}

func (s *Server) fail(kind taxonomy.Kind, op string, err error) error {
	terr := taxonomy.New(kind, op, err)
	if s.notifier != nil {
		if sendErr := s.notifier.SendError(terr.Error()); sendErr != nil {
			s.log.WithError(sendErr).Warn("failed to send error notification")
		}
	}
	return terr
}

// HandleOpenStreams validates every requested stream/profile pair before
// touching the bridge: any unknown stream name or profile with no
// compatible match fails the whole request without committing anything.
func (s *Server) HandleOpenStreams(msg handshake.Message) error {
	resolved := make(map[string]devicemodel.Profile, len(msg.StreamProfiles))
	for name, requested := range msg.StreamProfiles {
		sd, ok := s.streams[name]
		if !ok {
			return s.fail(taxonomy.NotFound, "control.HandleOpenStreams", fmt.Errorf("unknown stream %q", name))
		}
		idx := devicemodel.FindCompatible(requested, sd.Profiles)
		if idx < 0 {
			return s.fail(taxonomy.BadRequest, "control.HandleOpenStreams", fmt.Errorf("no compatible profile for stream %q", name))
		}
		resolved[name] = sd.Profiles[idx]
	}

	if msg.ResetOrDefault() {
		s.bridge.Reset()
	}
	for name, profile := range resolved {
		if err := s.bridge.Open(name, profile); err != nil {
			return s.fail(taxonomy.Internal, "control.HandleOpenStreams", err)
		}
	}
	if msg.CommitOrDefault() {
		s.bridge.Commit()
	}
	return nil
}

// HandleCloseStreams marks the listed streams no-longer-active and
// re-arbitrates immediately.
func (s *Server) HandleCloseStreams(msg handshake.Message) error {
	for _, name := range msg.StreamNames {
		s.bridge.Close(name)
	}
	s.bridge.Commit()
	return nil
}

// HandleSetOption applies a numeric value to the named option, owned by
// the stream identified in msg.OptionOwnerStream.
func (s *Server) HandleSetOption(msg handshake.Message) error {
	if msg.Value == nil {
		return s.fail(taxonomy.BadRequest, "control.HandleSetOption", fmt.Errorf("set-option requires a numeric value"))
	}
	opt, ok := s.options[optionKey{Stream: msg.OptionOwnerStream, Name: msg.OptionName}]
	if !ok {
		return s.fail(taxonomy.NotFound, "control.HandleSetOption", fmt.Errorf("unknown option %s/%s", msg.OptionOwnerStream, msg.OptionName))
	}
	opt.Value = *msg.Value
	return nil
}

// HandleQueryOption returns the current value of the named option.
func (s *Server) HandleQueryOption(msg handshake.Message) (float64, error) {
	opt, ok := s.options[optionKey{Stream: msg.OptionOwnerStream, Name: msg.OptionName}]
	if !ok {
		return 0, s.fail(taxonomy.NotFound, "control.HandleQueryOption", fmt.Errorf("unknown option %s/%s", msg.OptionOwnerStream, msg.OptionName))
	}
	return opt.Value, nil
}
