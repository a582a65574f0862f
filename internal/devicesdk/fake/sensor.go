package fake

import (
	"sync"
	"time"

	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/devicesdk"
)

// sensor synthesizes frames at each open stream's declared framerate until
// stopped. Options are held in memory and echoed back verbatim.
type sensor struct {
	name string

	mu       sync.Mutex
	options  map[string]float64
	opened   devicemodel.ActiveProfileSet
	stopFunc func()
}

func newSensor(name string) *sensor {
	return &sensor{name: name, options: make(map[string]float64)}
}

func (s *sensor) Name() string { return s.name }

func (s *sensor) Open(profiles devicemodel.ActiveProfileSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = profiles
	return nil
}

func (s *sensor) Start(cb devicesdk.FrameCallback) error {
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()

	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for streamName, profile := range opened {
		streamName, profile := streamName, profile
		fps := profile.Framerate
		if fps <= 0 {
			fps = 30
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(time.Second / time.Duration(fps))
			defer ticker.Stop()
			var frameID uint64
			for {
				select {
				case <-stopCh:
					return
				case <-ticker.C:
					frameID++
					cb(devicesdk.Frame{
						StreamName:      streamName,
						Payload:         make([]byte, profile.Width*profile.Height/64+1),
						FrameID:         frameID,
						TimestampDomain: "system-time",
					})
				}
			}
		}()
	}

	s.mu.Lock()
	s.stopFunc = func() {
		close(stopCh)
		wg.Wait()
	}
	s.mu.Unlock()
	return nil
}

func (s *sensor) Stop() {
	s.mu.Lock()
	stop := s.stopFunc
	s.stopFunc = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *sensor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = nil
}

func (s *sensor) SetOption(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[name] = value
	return nil
}

func (s *sensor) GetOption(name string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[name], nil
}
