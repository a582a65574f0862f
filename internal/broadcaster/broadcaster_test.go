package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/ddsfacade/inproc"
	"github.com/rsdds/device-bridge/internal/devicemodel"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, ddsfacade.Participant) {
	t.Helper()
	p := inproc.NewParticipant()
	b, err := New(p)
	require.NoError(t, err)
	b.Start()
	t.Cleanup(b.Stop)
	return b, p
}

func newReader(t *testing.T, p ddsfacade.Participant) ddsfacade.Reader {
	t.Helper()
	sub, err := p.CreateSubscriber()
	require.NoError(t, err)
	topic, err := p.CreateTopic(topicName, "device_info")
	require.NoError(t, err)
	qos := ddsfacade.DefaultQoS()
	qos.HistoryDepth = 10
	r, err := sub.CreateReader(topic, qos)
	require.NoError(t, err)
	return r
}

func drain(t *testing.T, r ddsfacade.Reader, timeout time.Duration) []devicemodel.DeviceInfo {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var out []devicemodel.DeviceInfo
	for time.Now().Before(deadline) {
		s, ok := r.Take()
		if !ok {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		info, err := Decode(s.Payload)
		require.NoError(t, err)
		out = append(out, info)
	}
	return out
}

func TestSingleDeviceSingleSubscriber(t *testing.T) {
	b, p := newTestBroadcaster(t)
	r := newReader(t, p)

	b.AddDevice(devicemodel.DeviceInfo{
		Name:      "Intel RealSense D435",
		Serial:    "112233",
		TopicRoot: devicemodel.TopicRoot("Intel RealSense D435", "112233"),
	})

	got := drain(t, r, 200*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, "realsense/D435/112233", got[0].TopicRoot)
}

func TestLateJoinerSeesExactlyOneRecord(t *testing.T) {
	b, p := newTestBroadcaster(t)

	b.AddDevice(devicemodel.DeviceInfo{Name: "A", Serial: "s1", TopicRoot: devicemodel.TopicRoot("A", "s1")})
	time.Sleep(100 * time.Millisecond)

	r := newReader(t, p)
	got := drain(t, r, 200*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].Serial)
}

func TestTwoDevicesSubscriberJoinsBetween(t *testing.T) {
	b, p := newTestBroadcaster(t)

	b.AddDevice(devicemodel.DeviceInfo{Name: "A", Serial: "s1", TopicRoot: devicemodel.TopicRoot("A", "s1")})
	time.Sleep(50 * time.Millisecond)
	r := newReader(t, p)
	b.AddDevice(devicemodel.DeviceInfo{Name: "B", Serial: "s2", TopicRoot: devicemodel.TopicRoot("B", "s2")})

	got := drain(t, r, 300*time.Millisecond)
	seen := map[string]int{}
	for _, info := range got {
		seen[info.Serial]++
	}
	assert.Equal(t, 1, seen["s1"])
	assert.Equal(t, 1, seen["s2"])
	assert.Len(t, got, 2)
}

func TestRemoveDeviceDeletesWriter(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	b.AddDevice(devicemodel.DeviceInfo{Name: "A", Serial: "s1"})
	time.Sleep(20 * time.Millisecond)

	b.RemoveDevice("s1")
	time.Sleep(20 * time.Millisecond)

	b.mu.Lock()
	_, ok := b.handles["s1"]
	b.mu.Unlock()
	assert.False(t, ok)
}
