package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
)

// =============================================================================
// WorkerPool Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	expected := runtime.GOMAXPROCS(0)
	if pool.Workers() != expected {
		t.Errorf("Workers() = %d, want %d (GOMAXPROCS)", pool.Workers(), expected)
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	numTasks := 100

	work := make([]func(), numTasks)
	for i := range work {
		work[i] = func() {
			counter.Add(1)
		}
	}
	pool.ExecuteAll(work)

	if counter.Load() != int64(numTasks) {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	pool.ExecuteAll([]func(){
		func() { counter.Add(1) },
		func() { counter.Add(1) },
	})

	if counter.Load() != 2 {
		t.Errorf("counter = %d, want 2 (closed pool runs inline)", counter.Load())
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning() = true after Close")
	}
}

// =============================================================================
// Band Tests
// =============================================================================

func TestSplitBands(t *testing.T) {
	tests := []struct {
		name       string
		height     int
		bandHeight int
		wantCount  int
		wantLast   Band
	}{
		{"exact", 64, 16, 4, Band{48, 64}},
		{"remainder", 70, 16, 5, Band{64, 70}},
		{"single", 5, 16, 1, Band{0, 5}},
		{"default height", 33, 0, 3, Band{32, 33}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands := SplitBands(tt.height, tt.bandHeight)
			if len(bands) != tt.wantCount {
				t.Fatalf("len(SplitBands()) = %d, want %d", len(bands), tt.wantCount)
			}
			if last := bands[len(bands)-1]; last != tt.wantLast {
				t.Errorf("last band = %+v, want %+v", last, tt.wantLast)
			}
			covered := 0
			for i, b := range bands {
				if i > 0 && b.Y0 != bands[i-1].Y1 {
					t.Errorf("band %d starts at %d, want %d", i, b.Y0, bands[i-1].Y1)
				}
				covered += b.Height()
			}
			if covered != tt.height {
				t.Errorf("bands cover %d rows, want %d", covered, tt.height)
			}
		})
	}
}

func TestSplitBandsEmpty(t *testing.T) {
	if bands := SplitBands(0, 16); bands != nil {
		t.Errorf("SplitBands(0) = %v, want nil", bands)
	}
}

func TestForEachBand(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	rows := make([]int32, 50)
	ForEachBand(pool, SplitBands(len(rows), 7), func(b Band) {
		for y := b.Y0; y < b.Y1; y++ {
			atomic.AddInt32(&rows[y], 1)
		}
	})

	for y, n := range rows {
		if n != 1 {
			t.Errorf("row %d visited %d times, want 1", y, n)
		}
	}
}

func TestForEachBandNilPool(t *testing.T) {
	var visited int
	ForEachBand(nil, SplitBands(10, 4), func(b Band) {
		visited += b.Height()
	})
	if visited != 10 {
		t.Errorf("visited = %d, want 10", visited)
	}
}
