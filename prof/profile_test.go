package prof

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderGroupsByLabel(t *testing.T) {
	var r Recorder
	r.Add("mint", 2*time.Microsecond)
	r.Add("mint", 4*time.Microsecond)
	r.Add("batch", time.Millisecond)
	r.Track(time.Now(), "batch")

	require.Equal(t, []string{"batch", "mint"}, r.Labels())
	require.Equal(t, []float64{2, 4}, r.Micros("mint"))
	require.Len(t, r.Micros("batch"), 2)
	require.Empty(t, r.Micros("missing"))

	snap := r.SnapshotAndReset()
	require.Len(t, snap["mint"], 2)
	require.Empty(t, r.Labels())
	require.NotNil(t, r.SnapshotAndReset())
}

func TestRecorderConcurrentAdd(t *testing.T) {
	var r Recorder
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Add("x", time.Nanosecond)
			}
		}()
	}
	wg.Wait()
	require.Len(t, r.Micros("x"), 1600)
}
