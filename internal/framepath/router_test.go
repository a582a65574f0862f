package framepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/ddsfacade/inproc"
	"github.com/rsdds/device-bridge/internal/devicesdk"
)

type fakeChecker struct {
	streaming map[string]bool
}

func (f *fakeChecker) IsStreaming(name string) bool { return f.streaming[name] }

func newTopicReader(t *testing.T, p ddsfacade.Participant, name string) (ddsfacade.Writer, ddsfacade.Reader) {
	t.Helper()
	topic, err := p.CreateTopic(name, name)
	require.NoError(t, err)
	pub, err := p.CreatePublisher()
	require.NoError(t, err)
	sub, err := p.CreateSubscriber()
	require.NoError(t, err)
	qos := ddsfacade.DefaultQoS()
	qos.HistoryDepth = 10
	r, err := sub.CreateReader(topic, qos)
	require.NoError(t, err)
	w, err := pub.CreateWriter(topic, qos)
	require.NoError(t, err)
	return w, r
}

func TestRouteDropsFrameWhenNotStreaming(t *testing.T) {
	p := inproc.NewParticipant()
	streamWriter, streamReader := newTopicReader(t, p, "realsense/D435/1/Depth")
	checker := &fakeChecker{streaming: map[string]bool{}}
	r := NewRouter(checker, false, nil)
	r.AddStreamWriter("Depth", streamWriter)

	r.Route(devicesdk.Frame{StreamName: "Depth", Payload: []byte("frame")})

	_, ok := streamReader.Take()
	assert.False(t, ok)
}

func TestRoutePublishesFrameWhenStreaming(t *testing.T) {
	p := inproc.NewParticipant()
	streamWriter, streamReader := newTopicReader(t, p, "realsense/D435/1/Depth")
	checker := &fakeChecker{streaming: map[string]bool{"Depth": true}}
	r := NewRouter(checker, false, nil)
	r.AddStreamWriter("Depth", streamWriter)

	r.Route(devicesdk.Frame{StreamName: "Depth", Payload: []byte("frame")})

	sample, ok := streamReader.Take()
	require.True(t, ok)
	assert.Equal(t, []byte("frame"), sample.Payload)
}

func TestRoutePublishesMetadataWhenEnabled(t *testing.T) {
	p := inproc.NewParticipant()
	streamWriter, _ := newTopicReader(t, p, "realsense/D435/1/Depth")
	metaWriter, metaReader := newTopicReader(t, p, "realsense/D435/1/metadata")
	checker := &fakeChecker{streaming: map[string]bool{"Depth": true}}
	r := NewRouter(checker, true, metaWriter)
	r.AddStreamWriter("Depth", streamWriter)

	r.Route(devicesdk.Frame{StreamName: "Depth", Payload: []byte("frame"), FrameID: 7, TimestampDomain: "system-time"})

	sample, ok := metaReader.Take()
	require.True(t, ok)
	assert.Contains(t, string(sample.Payload), `"frame-id":7`)
}

func TestRouteSkipsMetadataWhenDisabled(t *testing.T) {
	p := inproc.NewParticipant()
	streamWriter, _ := newTopicReader(t, p, "realsense/D435/1/Depth")
	metaWriter, metaReader := newTopicReader(t, p, "realsense/D435/1/metadata")
	checker := &fakeChecker{streaming: map[string]bool{"Depth": true}}
	r := NewRouter(checker, false, metaWriter)
	r.AddStreamWriter("Depth", streamWriter)

	r.Route(devicesdk.Frame{StreamName: "Depth", Payload: []byte("frame")})

	_, ok := metaReader.Take()
	assert.False(t, ok)
}
