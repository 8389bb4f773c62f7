package codec

import "time"

// OpenOptions carries the protocol-specific transport tuning of spec.md
// §4.4. Zero value means "let the adapter pick its protocol default".
type OpenOptions struct {
	ReconnectEnabled  bool
	ReconnectMaxDelay time.Duration
	BufferBytes       int
	MaxDelay          time.Duration
	SocketTimeout     time.Duration
	ForceTCP          bool // RTSP transport
}

// NetworkPreset is the generic network tuning of spec.md §4.4: bounded
// reconnect backoff from 0s to a 5s cap.
func NetworkPreset() OpenOptions {
	return OpenOptions{ReconnectEnabled: true, ReconnectMaxDelay: 5 * time.Second}
}

// HTTPPreset matches spec.md's "~10 MB buffer, ~5 s max delay" for HTTP/HTTPS.
func HTTPPreset() OpenOptions {
	return OpenOptions{BufferBytes: 10 << 20, MaxDelay: 5 * time.Second}
}

// RTSPPreset matches spec.md's "TCP transport, ~5 MB buffer, ~2 s socket timeout".
func RTSPPreset() OpenOptions {
	return OpenOptions{ForceTCP: true, BufferBytes: 5 << 20, SocketTimeout: 2 * time.Second}
}

// RTMPPreset matches spec.md's "~5 MB buffer" for RTMP/RTMPS.
func RTMPPreset() OpenOptions {
	return OpenOptions{BufferBytes: 5 << 20}
}

// UDPPreset matches spec.md's "~1 MB buffer, ~1 s socket timeout".
func UDPPreset() OpenOptions {
	return OpenOptions{BufferBytes: 1 << 20, SocketTimeout: time.Second}
}

// Demuxer opens a source, probes its streams, and yields packets belonging
// to the active video/audio streams (spec.md §4.4).
type Demuxer interface {
	// Open opens url with the given options. Fails with one of
	// ErrFileNotFound/ErrAccessDenied/ErrNetworkTimeout/ErrIOError.
	Open(url string, opts OpenOptions) error

	// ProbeStreams populates the stream list and selects index 0 of each
	// media type as active.
	ProbeStreams() ([]StreamDescriptor, error)

	// VideoStreams/AudioStreams return the probed streams of each type.
	VideoStreams() []StreamDescriptor
	AudioStreams() []StreamDescriptor

	// ReadPacket returns the next packet belonging to an active stream, nil
	// with no error at end-of-stream, or an error on I/O failure.
	// Packets on inactive streams are dropped internally, never returned.
	ReadPacket() (*Packet, error)

	// Seek performs a frame-accurate seek. When backward is true it lands
	// on or before the nearest key frame; it then flushes internal
	// framework buffers.
	Seek(targetUs int64, backward bool) error

	// DurationMs/Metadata/FindStreamByIndex are pure getters.
	DurationMs() int64
	Metadata() map[string]string
	FindStreamByIndex(index int) (StreamDescriptor, bool)

	// Close releases the underlying source.
	Close() error
}
