package bridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsdds/device-bridge/internal/devicemodel"
)

func testStreams() []devicemodel.StreamDescriptor {
	return []devicemodel.StreamDescriptor{
		{Name: "Depth", Kind: devicemodel.StreamDepth, SensorName: "Stereo Module"},
		{Name: "Color", Kind: devicemodel.StreamColor, SensorName: "RGB Camera"},
	}
}

type recorder struct {
	mu      sync.Mutex
	starts  int
	stops   int
	errors  []string
	failNext bool
}

func (r *recorder) onStart(name string, profiles devicemodel.ActiveProfileSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.failNext {
		r.failNext = false
		return assertErr{}
	}
	return nil
}

func (r *recorder) onStop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *recorder) onError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

type assertErr struct{}

func (assertErr) Error() string { return "sdk open failed" }

func TestOpenCommitStartsOwningSensor(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)

	require.NoError(t, b.Open("Depth", devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}))
	b.Commit()

	assert.Equal(t, 1, rec.starts)
	assert.True(t, b.IsStreaming("Depth"))
	assert.Equal(t, Streaming, b.SensorState("Stereo Module"))
	assert.Equal(t, Closed, b.SensorState("RGB Camera"))
}

func TestRepeatedOpenCommitIsIdempotent(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	profile := devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}

	require.NoError(t, b.Open("Depth", profile))
	b.Commit()
	require.NoError(t, b.Open("Depth", profile))
	b.Commit()

	assert.Equal(t, 1, rec.starts)
}

func TestOpenCloseCommitPerformsNoTransition(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	profile := devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}

	require.NoError(t, b.Open("Depth", profile))
	b.Close("Depth")
	b.Commit()

	assert.Equal(t, 0, rec.starts)
	assert.Equal(t, 0, rec.stops)
	assert.False(t, b.IsStreaming("Depth"))
}

func TestResetCommitClosesAllSensors(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	profile := devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}
	require.NoError(t, b.Open("Depth", profile))
	b.Commit()
	require.Equal(t, 1, rec.starts)

	b.Reset()
	b.Commit()

	assert.Equal(t, 1, rec.stops)
	assert.Equal(t, Closed, b.SensorState("Stereo Module"))
}

func TestStartFailureRevertsToClosedAndCallsOnError(t *testing.T) {
	rec := &recorder{failNext: true}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	profile := devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}

	require.NoError(t, b.Open("Depth", profile))
	b.Commit()

	assert.Equal(t, Closed, b.SensorState("Stereo Module"))
	assert.False(t, b.IsStreaming("Depth"))
	require.Len(t, rec.errors, 1)
}

func TestOpenUnknownStreamFails(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	err := b.Open("Fisheye", devicemodel.Profile{})
	assert.Error(t, err)
}

func TestChangingProfileRestartsSensor(t *testing.T) {
	rec := &recorder{}
	b := New(testStreams(), rec.onStart, rec.onStop, rec.onError)
	p1 := devicemodel.Profile{Width: 640, Height: 480, Framerate: 30, Format: "Z16"}
	p2 := devicemodel.Profile{Width: 1280, Height: 720, Framerate: 15, Format: "Z16"}

	require.NoError(t, b.Open("Depth", p1))
	b.Commit()
	require.NoError(t, b.Open("Depth", p2))
	b.Commit()

	assert.Equal(t, 2, rec.starts)
	assert.Equal(t, 1, rec.stops)
}
