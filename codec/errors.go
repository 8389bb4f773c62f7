package codec

import "errors"

// Demuxer.Open failure sentinels (spec.md §4.4).
var (
	ErrFileNotFound   = errors.New("codec: file not found")
	ErrAccessDenied   = errors.New("codec: access denied")
	ErrNetworkTimeout = errors.New("codec: network timeout")
	ErrIOError        = errors.New("codec: I/O error")
)
