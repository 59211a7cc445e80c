package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/usu/engine/core"
)

func TestSelectAdapter(t *testing.T) {
	software := AdapterInfo{Index: 0, Name: "llvmpipe", Type: AdapterTypeCPU, SupportsGraphics: true, SupportsPresent: true}
	integrated := AdapterInfo{Index: 1, Name: "igpu", Type: AdapterTypeIntegrated, SupportsGraphics: true, SupportsPresent: true}
	discrete := AdapterInfo{Index: 2, Name: "dgpu", Type: AdapterTypeDiscrete, SupportsGraphics: true, SupportsPresent: true}
	headless := AdapterInfo{Index: 3, Name: "compute", Type: AdapterTypeDiscrete, SupportsGraphics: true}

	tests := []struct {
		name     string
		adapters []AdapterInfo
		prefs    AdapterPreferences
		want     string
		err      error
	}{
		{"software only", []AdapterInfo{software}, AdapterPreferences{}, "", core.ErrNoCompatibleAdapter},
		{"none", nil, AdapterPreferences{}, "", core.ErrNoCompatibleAdapter},
		{"discrete preferred", []AdapterInfo{software, integrated, discrete}, AdapterPreferences{PreferHighPerformance: true}, "dgpu", nil},
		{"first hardware", []AdapterInfo{software, integrated, discrete}, AdapterPreferences{}, "igpu", nil},
		{"fallback without discrete", []AdapterInfo{integrated}, AdapterPreferences{PreferHighPerformance: true}, "igpu", nil},
		{"no present support", []AdapterInfo{headless}, AdapterPreferences{}, "", core.ErrNoCompatibleAdapter},
		{"api too old", []AdapterInfo{{Name: "old", Type: AdapterTypeDiscrete, APIVersion: 1, SupportsGraphics: true, SupportsPresent: true}}, AdapterPreferences{MinAPIVersion: 2}, "", core.ErrNoCompatibleAdapter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAdapter(tt.adapters, tt.prefs)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestDeviceContextInitializeFailsWithoutHardware(t *testing.T) {
	fb := newFakeBackend()
	fb.adapters = []AdapterInfo{{Name: "warp", Type: AdapterTypeCPU, SupportsGraphics: true, SupportsPresent: true}}
	dc := NewDeviceContext(fb, AdapterPreferences{})

	err := dc.Initialize()
	assert.ErrorIs(t, err, core.ErrNoCompatibleAdapter)
	assert.NotContains(t, fb.calls, "create_device warp")
}

func TestDeviceContextRequiresInitialize(t *testing.T) {
	dc := NewDeviceContext(newFakeBackend(), AdapterPreferences{})
	_, err := dc.Signal()
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	assert.ErrorIs(t, dc.WaitFor(1), core.ErrNotInitialized)
	assert.NoError(t, dc.Close())
}

func TestDeviceContextFenceMonotonic(t *testing.T) {
	for lag := 0; lag < 4; lag++ {
		fb := newFakeBackend()
		fb.lag = lag
		dc := NewDeviceContext(fb, AdapterPreferences{})
		require.NoError(t, dc.Initialize())

		var last uint64
		for i := 0; i < 7; i++ {
			v, err := dc.Signal()
			require.NoError(t, err)
			assert.Greater(t, v, last)
			last = v
			assert.LessOrEqual(t, dc.CompletedValue(), dc.LastSignaled())
		}
		require.NoError(t, dc.SignalAndWait())
		assert.GreaterOrEqual(t, dc.CompletedValue(), dc.LastSignaled(), "lag %d", lag)
	}
}

func TestDeviceContextWaitForCompletedSkipsWait(t *testing.T) {
	fb := newFakeBackend()
	dc := NewDeviceContext(fb, AdapterPreferences{})
	require.NoError(t, dc.Initialize())

	v, err := dc.Signal()
	require.NoError(t, err)
	fb.resetCalls()
	require.NoError(t, dc.WaitFor(v))
	assert.Empty(t, fb.calls)
}

func TestDeviceContextCloseDrainsOnce(t *testing.T) {
	fb := newFakeBackend()
	fb.lag = 2
	dc := NewDeviceContext(fb, AdapterPreferences{})
	require.NoError(t, dc.Initialize())
	_, err := dc.Signal()
	require.NoError(t, err)

	require.NoError(t, dc.Close())
	assert.Equal(t, "destroy_device", fb.calls[len(fb.calls)-1])
	assert.Equal(t, fb.signaled, fb.completed)

	fb.resetCalls()
	require.NoError(t, dc.Close())
	assert.Empty(t, fb.calls)
}
