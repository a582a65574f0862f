package fake

import "github.com/rsdds/device-bridge/internal/devicesdk"

// Watcher is a manually-driven attach/detach source: tests and
// --fake-device call Attach/Detach directly instead of waiting on real
// hardware events.
type Watcher struct {
	attached chan devicesdk.Device
	detached chan string
}

// NewWatcher creates an empty watcher with room for a handful of buffered
// events, enough for a single-host demo with a small number of devices.
func NewWatcher() *Watcher {
	return &Watcher{
		attached: make(chan devicesdk.Device, 8),
		detached: make(chan string, 8),
	}
}

func (w *Watcher) Attached() <-chan devicesdk.Device { return w.attached }
func (w *Watcher) Detached() <-chan string           { return w.detached }

// Attach injects a device-attached event.
func (w *Watcher) Attach(d devicesdk.Device) { w.attached <- d }

// Detach injects a device-detached event.
func (w *Watcher) Detach(serial string) { w.detached <- serial }
