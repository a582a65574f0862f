// Package fake is an in-memory devicesdk implementation used by tests and
// by the sample CLI's --fake-device mode: a dependency-free stand-in for a
// real camera SDK that needs no attached hardware to exercise.
package fake

import (
	"github.com/rsdds/device-bridge/internal/devicemodel"
	"github.com/rsdds/device-bridge/internal/devicesdk"
)

// Device is a synthetic D435-shaped camera: one depth stream on a "Stereo
// Module" sensor, one color stream on an "RGB Camera" sensor.
type Device struct {
	info       devicemodel.DeviceInfo
	sensors    []devicesdk.Sensor
	streams    []devicemodel.StreamDescriptor
	extrinsics map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics
}

// NewD435 builds the default synthetic device with serial as its unique
// key.
func NewD435(serial string) *Device {
	name := "Intel RealSense D435"
	streams := []devicemodel.StreamDescriptor{
		{
			Name:                "Depth",
			Kind:                devicemodel.StreamDepth,
			SensorName:          "Stereo Module",
			DefaultProfileIndex: 0,
			Profiles: []devicemodel.Profile{
				{Width: 640, Height: 480, Framerate: 30, Format: "Z16"},
				{Width: 1280, Height: 720, Framerate: 15, Format: "Z16"},
			},
			MetadataEnabled: true,
			Options: []devicemodel.Option{
				{OwnerStream: "Depth", Name: "laser-power", Value: 150,
					Range: devicemodel.OptionRange{Min: 0, Max: 360, Step: 30, Default: 150}},
			},
		},
		{
			Name:                "Color",
			Kind:                devicemodel.StreamColor,
			SensorName:          "RGB Camera",
			DefaultProfileIndex: 0,
			Profiles: []devicemodel.Profile{
				{Width: 1280, Height: 720, Framerate: 30, Format: "RGB8"},
			},
			MetadataEnabled: true,
		},
	}
	d := &Device{
		info: devicemodel.DeviceInfo{
			Name:      name,
			Serial:    serial,
			TopicRoot: devicemodel.TopicRoot(name, serial),
		},
		streams: streams,
		extrinsics: map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics{
			{From: "Depth", To: "Color"}: {
				Rotation:    [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
				Translation: [3]float64{0.015, 0, 0},
			},
		},
	}
	d.sensors = []devicesdk.Sensor{
		newSensor("Stereo Module"),
		newSensor("RGB Camera"),
	}
	return d
}

func (d *Device) Info() devicemodel.DeviceInfo { return d.info }
func (d *Device) Sensors() []devicesdk.Sensor  { return d.sensors }
func (d *Device) Streams() []devicemodel.StreamDescriptor {
	return d.streams
}
func (d *Device) Extrinsics() map[devicemodel.ExtrinsicsKey]devicemodel.Extrinsics {
	return d.extrinsics
}
