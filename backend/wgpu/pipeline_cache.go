package wgpu

import (
	"encoding/binary"
	"errors"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/deferred/backend"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// ErrNilPipelineFactory is returned by GetOrCreate when no factory is given.
var ErrNilPipelineFactory = errors.New("wgpu: pipeline factory is nil")

// VertexInput is one vertex buffer of a pipeline: a single float32 attribute.
type VertexInput struct {
	Location   uint32
	Components int
}

// ColorTarget is one color attachment of a pipeline.
type ColorTarget struct {
	Format gputypes.TextureFormat
	Write  bool
}

// PipelineKey holds everything that selects a render pipeline.
type PipelineKey struct {
	// Program identifies the shader modules and pipeline layout.
	Program uint64

	Inputs      []VertexInput
	Targets     []ColorTarget
	DepthFormat gputypes.TextureFormat

	// State is the fixed-function state. Only the fields that affect the
	// pipeline are hashed.
	State backend.RenderState
}

// PipelineCache caches render pipelines by key hash.
//
// PipelineCache is safe for concurrent use. It uses RWMutex with
// double-check locking for reads and tracks hit/miss statistics.
type PipelineCache struct {
	mu        sync.RWMutex
	pipelines map[uint64]*wgpu.RenderPipeline

	// byProgram lists the key hashes built for each program id.
	byProgram map[uint64][]uint64

	hits   uint64
	misses uint64
}

// NewPipelineCache creates an empty cache.
func NewPipelineCache() *PipelineCache {
	return &PipelineCache{
		pipelines: make(map[uint64]*wgpu.RenderPipeline),
		byProgram: make(map[uint64][]uint64),
	}
}

// GetOrCreate returns the pipeline cached for key, calling create on a miss.
//
// Fast path: RLock and look up. Slow path: Lock, look up again, create.
func (c *PipelineCache) GetOrCreate(key *PipelineKey, create func() (*wgpu.RenderPipeline, error)) (*wgpu.RenderPipeline, error) {
	if create == nil {
		return nil, ErrNilPipelineFactory
	}
	h := HashPipelineKey(key)

	c.mu.RLock()
	if p, ok := c.pipelines[h]; ok {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[h]; ok {
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}

	p, err := create()
	if err != nil {
		return nil, err
	}
	c.pipelines[h] = p
	c.byProgram[key.Program] = append(c.byProgram[key.Program], h)
	atomic.AddUint64(&c.misses, 1)
	return p, nil
}

// EvictProgram releases every pipeline built for program and returns how
// many were removed.
func (c *PipelineCache) EvictProgram(program uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	hashes := c.byProgram[program]
	n := 0
	for _, h := range hashes {
		p, ok := c.pipelines[h]
		if !ok {
			continue
		}
		if p != nil {
			p.Release()
		}
		delete(c.pipelines, h)
		n++
	}
	delete(c.byProgram, program)
	return n
}

// Stats returns the number of cache hits and misses.
func (c *PipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (c *PipelineCache) HitRate() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Size returns the number of cached pipelines.
func (c *PipelineCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// DestroyAll releases every cached pipeline and resets the statistics.
func (c *PipelineCache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		if p != nil {
			p.Release()
		}
	}
	c.pipelines = make(map[uint64]*wgpu.RenderPipeline)
	c.byProgram = make(map[uint64][]uint64)
	atomic.StoreUint64(&c.hits, 0)
	atomic.StoreUint64(&c.misses, 0)
}

// HashPipelineKey computes an FNV-1a hash of the pipeline-relevant parts of
// key. Viewport and clear values do not take part.
func HashPipelineKey(key *PipelineKey) uint64 {
	h := fnv.New64a()
	hashWriteUint64(h, key.Program)

	hashWriteUint32(h, uint32(len(key.Inputs)))
	for _, in := range key.Inputs {
		hashWriteUint32(h, in.Location)
		hashWriteUint32(h, uint32(in.Components))
	}

	hashWriteUint32(h, uint32(len(key.Targets)))
	for _, t := range key.Targets {
		hashWriteUint32(h, uint32(t.Format))
		hashWriteBool(h, t.Write)
	}
	hashWriteUint32(h, uint32(key.DepthFormat))

	st := key.State
	hashWriteUint32(h, uint32(st.EffectiveCullMode()))
	hashWriteUint32(h, uint32(st.FrontFace))
	hashWriteBool(h, st.EffectiveDepthWrite())
	hashWriteUint32(h, uint32(st.EffectiveDepthCompare()))
	hashWriteBool(h, st.Blend)
	if st.Blend {
		hashWriteUint32(h, uint32(st.BlendSrc))
		hashWriteUint32(h, uint32(st.BlendDst))
		hashWriteUint32(h, uint32(st.BlendOp))
	}
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
