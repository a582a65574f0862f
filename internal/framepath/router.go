// Package framepath routes frames arriving from a streaming sensor to
// their per-stream topic writer and, when metadata is enabled for the
// device, publishes a companion metadata record.
package framepath

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/devicesdk"
)

// StreamingChecker reports whether a stream is currently in the bridge's
// streaming set; frames for streams outside it are dropped silently.
type StreamingChecker interface {
	IsStreaming(streamName string) bool
}

// metadataHeader is the fixed portion of a metadata record.
type metadataHeader struct {
	FrameID         uint64   `json:"frame-id"`
	Timestamp       float64  `json:"timestamp"`
	TimestampDomain string   `json:"timestamp-domain"`
	DepthUnits      *float64 `json:"depth-units,omitempty"`
}

type metadataRecord struct {
	StreamName string             `json:"stream-name"`
	Header     metadataHeader     `json:"header"`
	Metadata   map[string]float64 `json:"metadata"`
}

// Router owns one writer per stream plus a shared metadata writer for one
// device.
type Router struct {
	log             *logrus.Entry
	streaming       StreamingChecker
	metadataEnabled bool

	mu             sync.RWMutex
	streamWriters  map[string]ddsfacade.Writer
	metadataWriter ddsfacade.Writer
}

// NewRouter builds a Router bound to a device's frame topics. Callers
// register each stream's writer via AddStreamWriter after creating it
// under `<topic-root>/<stream>`.
func NewRouter(streaming StreamingChecker, metadataEnabled bool, metadataWriter ddsfacade.Writer) *Router {
	return &Router{
		log:             logrus.WithField("component", "framepath"),
		streaming:       streaming,
		metadataEnabled: metadataEnabled,
		streamWriters:   make(map[string]ddsfacade.Writer),
		metadataWriter:  metadataWriter,
	}
}

// AddStreamWriter registers the writer bound to a stream's frame topic.
func (r *Router) AddStreamWriter(streamName string, w ddsfacade.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamWriters[streamName] = w
}

// SetStreaming rebinds the streaming-set checker, for callers that must
// construct a Router before the checker (typically the stream bridge) is
// available.
func (r *Router) SetStreaming(checker StreamingChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streaming = checker
}

// SetMetadata rebinds whether metadata is enabled and which writer to
// publish metadata records to.
func (r *Router) SetMetadata(enabled bool, w ddsfacade.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadataEnabled = enabled
	r.metadataWriter = w
}

// Route publishes frame to its stream's writer, then (if metadata is
// enabled for this device) publishes the companion metadata record.
// Frames for a stream outside the bridge's current streaming set are
// dropped silently, matching lrs_device_controller's
// `if (_bridge.is_streaming(server)) server->publish(...)` guard.
func (r *Router) Route(frame devicesdk.Frame) {
	r.mu.RLock()
	streaming := r.streaming
	writer, ok := r.streamWriters[frame.StreamName]
	metadataWriter := r.metadataWriter
	metadataEnabled := r.metadataEnabled
	r.mu.RUnlock()

	if streaming == nil || !streaming.IsStreaming(frame.StreamName) {
		return
	}

	if !ok {
		r.log.WithField("stream", frame.StreamName).Warn("no writer registered for streaming stream")
		return
	}
	if err := writer.Write(ddsfacade.Sample{Payload: frame.Payload}); err != nil {
		r.log.WithError(err).WithField("stream", frame.StreamName).Warn("transient frame write failure")
	}

	if !metadataEnabled || metadataWriter == nil {
		return
	}
	record := metadataRecord{
		StreamName: frame.StreamName,
		Header: metadataHeader{
			FrameID:         frame.FrameID,
			Timestamp:       frame.TimestampMillis,
			TimestampDomain: frame.TimestampDomain,
			DepthUnits:      frame.DepthUnits,
		},
		Metadata: frame.Metadata,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		r.log.WithError(err).WithField("stream", frame.StreamName).Error("failed to encode metadata record")
		return
	}
	if err := metadataWriter.Write(ddsfacade.Sample{Payload: payload}); err != nil {
		r.log.WithError(err).WithField("stream", frame.StreamName).Warn("transient metadata write failure")
	}
}
