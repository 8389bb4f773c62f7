//go:build !linux && !windows && !darwin

package hwaccel

func NewPlatformDevice() (*Device, error) {
	return &Device{Backend: BackendNone}, nil
}
