// Package devicemodel defines the data types shared by every device-bridge
// component: the broadcast device-info record, sensor/stream descriptors,
// profiles, options, and extrinsics.
package devicemodel

import "strconv"

// DeviceInfo is the broadcast payload. TopicRoot is a pure function of
// Name and Serial — see TopicRoot in topic_root.go.
type DeviceInfo struct {
	Name        string // human-readable model name, e.g. "Intel RealSense D435"
	Serial      string // unique key
	ProductLine string
	Locked      bool
	TopicRoot   string
}

// StreamKind enumerates the recognized stream kinds.
type StreamKind string

const (
	StreamDepth      StreamKind = "depth"
	StreamColor      StreamKind = "color"
	StreamIR         StreamKind = "ir"
	StreamFisheye    StreamKind = "fisheye"
	StreamConfidence StreamKind = "confidence"
	StreamAccel      StreamKind = "accel"
	StreamGyro       StreamKind = "gyro"
	StreamPose       StreamKind = "pose"
)

// ValidStreamKind reports whether k is one of the eight recognized kinds.
func ValidStreamKind(k StreamKind) bool {
	switch k {
	case StreamDepth, StreamColor, StreamIR, StreamFisheye, StreamConfidence, StreamAccel, StreamGyro, StreamPose:
		return true
	default:
		return false
	}
}

// SensorDescriptor names a sensor and the streams it owns.
type SensorDescriptor struct {
	Name    string
	Streams []string // stream names owned by this sensor
}

// VideoIntrinsics is the optional per-video-stream intrinsics set.
type VideoIntrinsics struct {
	Width, Height           int
	PrincipalX, PrincipalY  float64
	FocalX, FocalY          float64
	DistortionModel         string
	DistortionCoefficients  [5]float64
}

// MotionIntrinsics is the optional per-motion-stream intrinsics set.
type MotionIntrinsics struct {
	Data           [12]float64
	NoiseVariances [3]float64
	BiasVariances  [3]float64
}

// StreamDescriptor describes one globally-unique-within-device stream.
type StreamDescriptor struct {
	Name                string
	Kind                StreamKind
	SensorName          string
	Profiles            []Profile
	DefaultProfileIndex int
	VideoIntrinsics     *VideoIntrinsics
	MotionIntrinsics    *MotionIntrinsics
	Options             []Option
	MetadataEnabled     bool
}

// OptionRange is the (min, max, step, default) tuple for an option.
type OptionRange struct {
	Min, Max, Step, Default float64
}

// Option is a numeric, per-stream control.
type Option struct {
	OwnerStream string
	Name        string
	Value       float64
	Range       OptionRange
	Description string
}

// Extrinsics is the rotation/translation pair between an ordered stream
// pair.
type Extrinsics struct {
	Rotation    [9]float64
	Translation [3]float64
}

// ExtrinsicsKey identifies an ordered (from, to) stream pair.
type ExtrinsicsKey struct {
	From, To string
}

// StreamName forms a stream name from its kind and an optional index for
// devices exposing more than one stream of the same kind (e.g. "ir_1",
// "ir_2"). index <= 0 yields the bare kind name.
func StreamName(kind StreamKind, index int) string {
	if index <= 0 {
		return string(kind)
	}
	return string(kind) + "_" + strconv.Itoa(index)
}
