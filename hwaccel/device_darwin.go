//go:build darwin

package hwaccel

// NewPlatformDevice would normally wrap a VideoToolbox decompression
// session. Not bound in this module; always software fallback.
func NewPlatformDevice() (*Device, error) {
	return &Device{Backend: BackendNone}, nil
}
