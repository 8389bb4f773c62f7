package zenplay

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a CoreError per spec.md §7's "Kinds" list.
type ErrorCode uint8

const (
	ErrorUnknown ErrorCode = iota
	ErrorInvalidParameter
	ErrorNotInitialized
	ErrorAlreadyRunning
	ErrorOutOfMemory
	ErrorFileNotFound
	ErrorAccessDenied
	ErrorNetworkTimeout
	ErrorIOError
	ErrorNotSupported
	ErrorDecoderNotFound
	ErrorUnsupportedCodec
	ErrorDecoderInitFailed
	ErrorDecoderSendFrameFailed
	ErrorDecoderReceiveFrameFailed
	ErrorRenderError
	ErrorEndOfFile
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorInvalidParameter:
		return "InvalidParameter"
	case ErrorNotInitialized:
		return "NotInitialized"
	case ErrorAlreadyRunning:
		return "AlreadyRunning"
	case ErrorOutOfMemory:
		return "OutOfMemory"
	case ErrorFileNotFound:
		return "FileNotFound"
	case ErrorAccessDenied:
		return "AccessDenied"
	case ErrorNetworkTimeout:
		return "NetworkTimeout"
	case ErrorIOError:
		return "IOError"
	case ErrorNotSupported:
		return "NotSupported"
	case ErrorDecoderNotFound:
		return "DecoderNotFound"
	case ErrorUnsupportedCodec:
		return "UnsupportedCodec"
	case ErrorDecoderInitFailed:
		return "DecoderInitFailed"
	case ErrorDecoderSendFrameFailed:
		return "DecoderSendFrameFailed"
	case ErrorDecoderReceiveFrameFailed:
		return "DecoderReceiveFrameFailed"
	case ErrorRenderError:
		return "RenderError"
	case ErrorEndOfFile:
		return "EndOfFile"
	default:
		return "Unknown"
	}
}

// CoreError wraps a component-tagged failure with its ErrorCode and, where
// applicable, an underlying cause (spec.md §7's "result value with an
// ErrorCode enum + message" translated into Go's error-return idiom).
type CoreError struct {
	Code      ErrorCode
	Component string
	Err       error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zenplay: %s: %s: %v", e.Component, e.Code, e.Err)
	}
	return fmt.Sprintf("zenplay: %s: %s", e.Component, e.Code)
}

func (e *CoreError) Unwrap() error { return e.Err }

func newCoreError(component string, code ErrorCode, cause error) *CoreError {
	return &CoreError{Code: code, Component: component, Err: cause}
}

// Sentinel errors for specific, non-recoverable preconditions the facade
// checks directly, extended with this module's seek/state additions.
var (
	ErrNoVideo         = errors.New("zenplay: source has no video stream")
	ErrNilAudioContext = errors.New("zenplay: source has audio but Options.AudioContext is nil")
	ErrBadSampleRate   = errors.New("zenplay: Options.AudioContext reports a non-positive sample rate")

	ErrInvalidTransition = errors.New("zenplay: invalid state transition")
	ErrSeekInProgress    = errors.New("zenplay: seek already in progress")
	ErrNotOpen           = errors.New("zenplay: player is not open")
)
