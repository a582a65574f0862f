// Package devicesdk is the camera SDK boundary: the interface the stream
// bridge and control channel consume, standing in for a real vendor SDK
// (enumerated sensors, stream profiles, options with ranges, frame
// callbacks, intrinsics/extrinsics queries). internal/devicesdk/fake is
// the one concrete, in-memory implementation shipped here.
package devicesdk

import "github.com/rsdds/device-bridge/internal/devicemodel"

// Frame is one payload delivered by a streaming sensor, carrying enough
// metadata for the frame path to build a metadata record.
type Frame struct {
	StreamName      string
	Payload         []byte
	FrameID         uint64
	TimestampMillis float64
	TimestampDomain string
	DepthUnits      *float64
	Metadata        map[string]float64
}

// FrameCallback receives frames from a started sensor.
type FrameCallback func(Frame)

// Sensor is one physical sensor exposing a group of streams that must be
// opened, started, stopped, and closed together.
type Sensor interface {
	Name() string
	// Open prepares the sensor to stream the given per-stream profiles.
	Open(profiles devicemodel.ActiveProfileSet) error
	// Start begins delivering frames to cb until Stop is called.
	Start(cb FrameCallback) error
	Stop()
	Close()
	SetOption(name string, value float64) error
	GetOption(name string) (float64, error)
}

// Device is one enumerated camera: its broadcast identity, the sensors it
// owns, the streams those sensors expose, and any known extrinsics.
type Device interface {
	Info() devicemodel.DeviceInfo
	Sensors() []Sensor
	Streams() []devicemodel.StreamDescriptor
	Extrinsics() map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics
}

// Watcher reports device attach/detach events from the device-watcher
// external collaborator.
type Watcher interface {
	Attached() <-chan Device
	Detached() <-chan string // serial
}
