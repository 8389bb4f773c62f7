//go:build linux

package hwaccel

// NewPlatformDevice would normally open a VADisplay for VAAPI. This module
// ships no cgo binding for it (no pack library exposes one), so it always
// reports BackendNone and callers fall back to software decode, exactly
// like spec.md scenario S6 ("hardware init fails, decoder retries
// software").
func NewPlatformDevice() (*Device, error) {
	return &Device{Backend: BackendNone}, nil
}
