package wgpu

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

func testKey() *PipelineKey {
	return &PipelineKey{
		Program: 7,
		Inputs:  []VertexInput{{Location: 0, Components: 3}, {Location: 1, Components: 3}},
		Targets: []ColorTarget{
			{Format: gputypes.TextureFormatRGBA16Float, Write: true},
			{Format: gputypes.TextureFormatRGBA16Float, Write: true},
		},
		DepthFormat: gputypes.TextureFormatDepth24Plus,
		State:       backend.DefaultRenderState(64, 64),
	}
}

func TestHashPipelineKeyStable(t *testing.T) {
	a, b := testKey(), testKey()
	if HashPipelineKey(a) != HashPipelineKey(b) {
		t.Error("equal keys hash differently")
	}

	// Viewport and clear values do not select a pipeline.
	b.State.ViewportW = 10
	b.State.ClearColorRGB = gputypes.Color{R: 1}
	b.State.ClearDepthVal = 0.5
	if HashPipelineKey(a) != HashPipelineKey(b) {
		t.Error("viewport or clear state changed the hash")
	}

	// Blend factors only matter while blending is on.
	b.State.BlendSrc = gputypes.BlendFactorSrcAlpha
	if HashPipelineKey(a) != HashPipelineKey(b) {
		t.Error("blend factors changed the hash with blending off")
	}
}

func TestHashPipelineKeyDiffers(t *testing.T) {
	base := HashPipelineKey(testKey())
	tests := []struct {
		name   string
		modify func(k *PipelineKey)
	}{
		{"program", func(k *PipelineKey) { k.Program = 8 }},
		{"components", func(k *PipelineKey) { k.Inputs[1].Components = 2 }},
		{"location", func(k *PipelineKey) { k.Inputs[1].Location = 2 }},
		{"write mask", func(k *PipelineKey) { k.Targets[1].Write = false }},
		{"target format", func(k *PipelineKey) { k.Targets[0].Format = gputypes.TextureFormatRGBA8Unorm }},
		{"no depth", func(k *PipelineKey) { k.DepthFormat = gputypes.TextureFormatUndefined }},
		{"blend", func(k *PipelineKey) { k.State.Blend = true }},
		{"depth test", func(k *PipelineKey) { k.State.DepthTest = true }},
		{"cull", func(k *PipelineKey) { k.State.CullFaceOn = true }},
		{"front face", func(k *PipelineKey) { k.State.FrontFace = gputypes.FrontFaceCW }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := testKey()
			tt.modify(k)
			if HashPipelineKey(k) == base {
				t.Errorf("modifying %s did not change the hash", tt.name)
			}
		})
	}
}

func TestHashPipelineKeyDisabledDepthIgnoresCompare(t *testing.T) {
	a, b := testKey(), testKey()
	b.State.DepthCompare = gputypes.CompareFunctionGreater
	b.State.DepthWrite = false
	if HashPipelineKey(a) != HashPipelineKey(b) {
		t.Error("depth compare and mask changed the hash with depth test off")
	}
}

func TestPipelineCacheGetOrCreate(t *testing.T) {
	c := NewPipelineCache()
	calls := 0
	create := func() (*wgpu.RenderPipeline, error) {
		calls++
		return nil, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrCreate(testKey(), create); err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d, %d, want 2, 1", hits, misses)
	}
	if got := c.HitRate(); got < 0.66 || got > 0.67 {
		t.Errorf("HitRate() = %v, want 2/3", got)
	}

	k := testKey()
	k.Program = 9
	if _, err := c.GetOrCreate(k, create); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.DestroyAll()
	if c.Size() != 0 || c.HitRate() != 0 {
		t.Errorf("after DestroyAll Size() = %d, HitRate() = %v, want 0, 0", c.Size(), c.HitRate())
	}
}

func TestPipelineCacheEvictProgram(t *testing.T) {
	c := NewPipelineCache()
	create := func() (*wgpu.RenderPipeline, error) { return nil, nil }

	a := testKey()
	blended := testKey()
	blended.State.Blend = true
	other := testKey()
	other.Program = 9
	for _, k := range []*PipelineKey{a, blended, other} {
		if _, err := c.GetOrCreate(k, create); err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
	}

	if n := c.EvictProgram(a.Program); n != 2 {
		t.Errorf("EvictProgram(%d) = %d, want 2", a.Program, n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() after eviction = %d, want 1", c.Size())
	}
	if n := c.EvictProgram(a.Program); n != 0 {
		t.Errorf("second EvictProgram() = %d, want 0", n)
	}

	calls := 0
	if _, err := c.GetOrCreate(testKey(), func() (*wgpu.RenderPipeline, error) {
		calls++
		return nil, nil
	}); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("factory called %d times after eviction, want 1", calls)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestPipelineCacheErrors(t *testing.T) {
	c := NewPipelineCache()
	if _, err := c.GetOrCreate(testKey(), nil); !errors.Is(err, ErrNilPipelineFactory) {
		t.Errorf("GetOrCreate(nil) error = %v, want ErrNilPipelineFactory", err)
	}

	boom := errors.New("boom")
	_, err := c.GetOrCreate(testKey(), func() (*wgpu.RenderPipeline, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("GetOrCreate() error = %v, want %v", err, boom)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after failed create, want 0", c.Size())
	}
}

func TestPipelineCacheConcurrent(t *testing.T) {
	c := NewPipelineCache()
	var mu sync.Mutex
	calls := 0
	create := func() (*wgpu.RenderPipeline, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrCreate(testKey(), create)
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}
