// Package handshake implements the two-topic discovery conversation
// between a device server and a client: device-header, per-stream
// stream-header records, and the control-channel message shapes they
// share.
package handshake

import (
	"encoding/json"

	"github.com/rsdds/device-bridge/internal/devicemodel"
)

// ID discriminates a message's payload shape.
type ID string

const (
	DeviceHeader ID = "device-header"
	StreamHeader ID = "stream-header"
	OpenStreams  ID = "open-streams"
	CloseStreams ID = "close-streams"
	SetOption    ID = "set-option"
	QueryOption  ID = "query-option"
	Error        ID = "error"
	// Extrinsics supplements the message table with the original's
	// per-pair extrinsics record (get_extrinsics_map in
	// lrs-device-controller.cpp), sent once after all stream-headers.
	Extrinsics ID = "extrinsics"
)

// Message is the self-describing record carried over the notification and
// control topics. Only the fields relevant to ID are populated; the rest
// are omitted from the wire encoding, except default-profile-index, which
// is always written.
type Message struct {
	ID ID `json:"id"`

	// device-header
	NStreams int `json:"n-streams,omitempty"`

	// stream-header
	Name                 string                        `json:"name,omitempty"`
	Type                 string                        `json:"type,omitempty"`
	SensorName           string                        `json:"sensor-name,omitempty"`
	DefaultProfileIndex  int                           `json:"default-profile-index"`
	Profiles             []devicemodel.Profile         `json:"profiles,omitempty"`
	VideoIntrinsics      *devicemodel.VideoIntrinsics  `json:"video-intrinsics,omitempty"`
	MotionIntrinsics     *devicemodel.MotionIntrinsics `json:"motion-intrinsics,omitempty"`

	// open-streams. Reset/Commit are pointers so the wire encoding can
	// distinguish "field omitted, default to true" from an explicit false.
	StreamProfiles map[string]devicemodel.Profile `json:"stream-profiles,omitempty"`
	Reset          *bool                           `json:"reset,omitempty"`
	Commit         *bool                           `json:"commit,omitempty"`

	// close-streams
	StreamNames []string `json:"stream-names,omitempty"`

	// set-option / query-option
	OptionOwnerStream string   `json:"option-owner-stream,omitempty"`
	OptionName        string   `json:"option-name,omitempty"`
	Value             *float64 `json:"value,omitempty"`

	// error
	ErrorText string `json:"error,omitempty"`

	// extrinsics
	From             string                 `json:"from,omitempty"`
	To               string                 `json:"to,omitempty"`
	ExtrinsicsRecord *devicemodel.Extrinsics `json:"extrinsics-record,omitempty"`
}

// Encode marshals m into a Sample payload.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// NewOpenStreams builds an open-streams request with reset and commit both
// set explicitly (both default to true when omitted from the wire).
func NewOpenStreams(profiles map[string]devicemodel.Profile, reset, commit bool) Message {
	return Message{ID: OpenStreams, StreamProfiles: profiles, Reset: &reset, Commit: &commit}
}

// ResetOrDefault reports the effective reset flag: true unless the field
// was explicitly set to false.
func (m Message) ResetOrDefault() bool {
	return m.Reset == nil || *m.Reset
}

// CommitOrDefault reports the effective commit flag: true unless the field
// was explicitly set to false.
func (m Message) CommitOrDefault() bool {
	return m.Commit == nil || *m.Commit
}
