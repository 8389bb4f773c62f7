//go:build windows

package hwaccel

// NewPlatformDevice would normally create a D3D11 device for DXVA2/D3D11VA
// decode. No pack library offers that binding, so this build still reports
// BackendNone; the bind-flag patching logic in applyPoolSizingAndBindFlags
// is exercised directly by tests instead, against a manually-built
// BackendD3D11 Device.
func NewPlatformDevice() (*Device, error) {
	return &Device{Backend: BackendNone}, nil
}
