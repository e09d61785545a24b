package gpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestClassifyAcquireError(t *testing.T) {
	const prefix = "wgpu.(*Surface).GetCurrentTexture(): "
	tests := []struct {
		msg  string
		want error
	}{
		{"Surface is lost", ErrSurfaceLost},
		{"Surface is outdated, needs to be re-created", ErrSurfaceLost},
		{"Parent device is lost", ErrSurfaceLost},
		{"Surface timed out", ErrSurfaceTimeout},
		{"acquire timeout", ErrSurfaceTimeout},
		{"Surface image is already acquired", nil},
		{"Surface is not configured for presentation", nil},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			in := errors.New(prefix + tt.msg)
			got := classifyAcquireError(in)
			if tt.want == nil {
				if got != in {
					t.Errorf("classifyAcquireError = %v, want the error unchanged", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyAcquireError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdapterInfo(t *testing.T) {
	tests := []struct {
		name string
		info wgpu.AdapterInfo
		opts AdapterOptions
		want AdapterInfo
	}{
		{
			name: "auto resolves to the reported backend",
			info: wgpu.AdapterInfo{Name: "Radeon", BackendType: wgpu.BackendTypeVulkan, AdapterType: wgpu.AdapterTypeDiscreteGPU},
			opts: AdapterOptions{Backend: BackendAuto, Power: PowerPreferenceHighPerformance},
			want: AdapterInfo{Name: "Radeon", Backend: BackendVulkan, Power: PowerPreferenceHighPerformance},
		},
		{
			name: "gles reports as gl",
			info: wgpu.AdapterInfo{Name: "llvmpipe", BackendType: wgpu.BackendTypeOpenGLES, AdapterType: wgpu.AdapterTypeCPU},
			opts: AdapterOptions{Backend: BackendGL},
			want: AdapterInfo{Name: "llvmpipe", Backend: BackendGL, Fallback: true},
		},
		{
			name: "metal",
			info: wgpu.AdapterInfo{Name: "Apple M2", BackendType: wgpu.BackendTypeMetal, AdapterType: wgpu.AdapterTypeIntegratedGPU},
			want: AdapterInfo{Name: "Apple M2", Backend: BackendMetal},
		},
		{
			name: "browser reports nothing",
			opts: AdapterOptions{Backend: BackendBrowserWebGPU, ForceFallback: true},
			want: AdapterInfo{Name: "wgpu", Backend: BackendBrowserWebGPU, Fallback: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapterInfo(tt.info, tt.opts); got != tt.want {
				t.Errorf("adapterInfo = %+v, want %+v", got, tt.want)
			}
		})
	}
}
