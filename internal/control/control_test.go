package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsdds/device-bridge/internal/bridge"
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/handshake"
	"github.com/rsdds/device-bridge/internal/taxonomy"
)

type stubNotifier struct {
	errors []string
}

func (n *stubNotifier) SendError(text string) error {
	n.errors = append(n.errors, text)
	return nil
}

func testStreams() []devicemodel.StreamDescriptor {
	return []devicemodel.StreamDescriptor{
		{
			Name: "Depth", Kind: devicemodel.StreamDepth, SensorName: "Stereo Module",
			Profiles: []devicemodel.Profile{{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}},
			Options: []devicemodel.Option{
				{OwnerStream: "Depth", Name: "laser-power", Value: 150, Range: devicemodel.OptionRange{Min: 0, Max: 300, Step: 30, Default: 150}},
			},
		},
		{
			Name: "Color", Kind: devicemodel.StreamColor, SensorName: "RGB Camera",
			Profiles: []devicemodel.Profile{{Width: 1280, Height: 720, Framerate: 30, Format: "RGB8"}},
		},
	}
}

func newServer() (*Server, *bridge.Bridge, *stubNotifier) {
	notifier := &stubNotifier{}
	starts := 0
	br := bridge.New(testStreams(), func(string, devicemodel.ActiveProfileSet) error { starts++; return nil }, func(string) {}, func(string) {})
	return NewServer(testStreams(), br, notifier), br, notifier
}

func TestHandleOpenStreamsHappyPath(t *testing.T) {
	s, br, _ := newServer()
	msg := handshake.NewOpenStreams(map[string]devicemodel.Profile{
		"Depth": {Framerate: 30, Format: "Z16"},
	}, true, true)

	require.NoError(t, s.HandleOpenStreams(msg))
	assert.True(t, br.IsStreaming("Depth"))
}

func TestHandleOpenStreamsUnknownStreamFailsAtomically(t *testing.T) {
	s, br, notifier := newServer()
	msg := handshake.NewOpenStreams(map[string]devicemodel.Profile{
		"Depth":   {Framerate: 30, Format: "Z16"},
		"Fisheye": {Framerate: 30, Format: "Y8"},
	}, true, true)

	err := s.HandleOpenStreams(msg)
	require.Error(t, err)
	assert.True(t, taxonomy.Is(err, taxonomy.NotFound))
	assert.False(t, br.IsStreaming("Depth"), "nothing should commit on validation failure")
	require.Len(t, notifier.errors, 1)
}

func TestHandleOpenStreamsIncompatibleProfileFails(t *testing.T) {
	s, br, _ := newServer()
	msg := handshake.NewOpenStreams(map[string]devicemodel.Profile{
		"Depth": {Framerate: 90, Format: "Z16"}, // no 90fps profile declared
	}, true, true)

	err := s.HandleOpenStreams(msg)
	require.Error(t, err)
	assert.True(t, taxonomy.Is(err, taxonomy.BadRequest))
	assert.False(t, br.IsStreaming("Depth"))
}

func TestHandleCloseStreamsReArbitrates(t *testing.T) {
	s, br, _ := newServer()
	require.NoError(t, s.HandleOpenStreams(handshake.NewOpenStreams(map[string]devicemodel.Profile{
		"Depth": {Framerate: 30, Format: "Z16"},
	}, true, true)))
	require.True(t, br.IsStreaming("Depth"))

	require.NoError(t, s.HandleCloseStreams(handshake.Message{StreamNames: []string{"Depth"}}))
	assert.False(t, br.IsStreaming("Depth"))
}

func TestHandleSetAndQueryOption(t *testing.T) {
	s, _, _ := newServer()
	newValue := 90.0
	require.NoError(t, s.HandleSetOption(handshake.Message{OptionOwnerStream: "Depth", OptionName: "laser-power", Value: &newValue}))

	got, err := s.HandleQueryOption(handshake.Message{OptionOwnerStream: "Depth", OptionName: "laser-power"})
	require.NoError(t, err)
	assert.Equal(t, 90.0, got)
}

func TestHandleQueryUnknownOptionFails(t *testing.T) {
	s, _, notifier := newServer()
	_, err := s.HandleQueryOption(handshake.Message{OptionOwnerStream: "Depth", OptionName: "does-not-exist"})
	require.Error(t, err)
	assert.True(t, taxonomy.Is(err, taxonomy.NotFound))
	require.Len(t, notifier.errors, 1)
}
