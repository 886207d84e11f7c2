package replay_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/spaghettifunk/relic/engine/replay"
	"github.com/spaghettifunk/relic/engine/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createEvent records one successful backend create, in completion order.
type createEvent struct {
	kind          metadata.ResourceType
	handle        metadata.Handle
	moduleHandles []metadata.Handle // stage module slot values observed at create time
}

// fakeBackend stands in for the Vulkan backend: it hands out sequential
// handles, records every create and destroy, and can be told to fail
// particular creates.
type fakeBackend struct {
	mu   sync.Mutex
	next metadata.Handle

	initCount int
	appInfo   *metadata.ApplicationInfo

	failShaderModule     func(cfg *metadata.ShaderModuleConfig) bool
	failGraphicsPipeline func(cfg *metadata.GraphicsPipelineConfig) bool
	failInitialize       bool

	creates    []createEvent
	destroys   map[metadata.Handle]int
	live       map[metadata.Handle]metadata.ResourceType
	shutdowns  int
	cacheBlob  []byte
	cacheReads int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		destroys: map[metadata.Handle]int{},
		live:     map[metadata.Handle]metadata.ResourceType{},
	}
}

func (b *fakeBackend) Initialize(info *metadata.ApplicationInfo, features *metadata.DeviceFeatures) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failInitialize {
		return errors.New("no vulkan driver present")
	}
	b.initCount++
	b.appInfo = info
	return nil
}

func (b *fakeBackend) create(kind metadata.ResourceType, moduleHandles []metadata.Handle) (metadata.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	handle := b.next
	b.creates = append(b.creates, createEvent{kind: kind, handle: handle, moduleHandles: moduleHandles})
	b.live[handle] = kind
	return handle, nil
}

func (b *fakeBackend) CreateSampler(cfg *metadata.SamplerConfig) (metadata.Handle, error) {
	return b.create(metadata.ResourceTypeSampler, nil)
}

func (b *fakeBackend) CreateDescriptorSetLayout(cfg *metadata.DescriptorSetLayoutConfig) (metadata.Handle, error) {
	return b.create(metadata.ResourceTypeDescriptorSetLayout, nil)
}

func (b *fakeBackend) CreatePipelineLayout(cfg *metadata.PipelineLayoutConfig) (metadata.Handle, error) {
	return b.create(metadata.ResourceTypePipelineLayout, nil)
}

func (b *fakeBackend) CreateRenderPass(cfg *metadata.RenderPassConfig) (metadata.Handle, error) {
	return b.create(metadata.ResourceTypeRenderPass, nil)
}

func (b *fakeBackend) CreateShaderModule(cfg *metadata.ShaderModuleConfig) (metadata.Handle, error) {
	if b.failShaderModule != nil && b.failShaderModule(cfg) {
		return metadata.NullHandle, errors.New("shader compilation refused")
	}
	return b.create(metadata.ResourceTypeShaderModule, nil)
}

func (b *fakeBackend) CreateGraphicsPipeline(cfg *metadata.GraphicsPipelineConfig) (metadata.Handle, error) {
	if b.failGraphicsPipeline != nil && b.failGraphicsPipeline(cfg) {
		return metadata.NullHandle, errors.New("pipeline compilation refused")
	}
	modules := make([]metadata.Handle, len(cfg.Stages))
	for i, s := range cfg.Stages {
		if s.Module != nil {
			modules[i] = *s.Module
		}
	}
	return b.create(metadata.ResourceTypeGraphicsPipeline, modules)
}

func (b *fakeBackend) CreateComputePipeline(cfg *metadata.ComputePipelineConfig) (metadata.Handle, error) {
	var modules []metadata.Handle
	if cfg.Stage.Module != nil {
		modules = []metadata.Handle{*cfg.Stage.Module}
	}
	return b.create(metadata.ResourceTypeComputePipeline, modules)
}

func (b *fakeBackend) Destroy(kind metadata.ResourceType, handle metadata.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroys[handle]++
	delete(b.live, handle)
}

func (b *fakeBackend) CacheData() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheReads++
	return b.cacheBlob, nil
}

func (b *fakeBackend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdowns++
	return nil
}

func (b *fakeBackend) createsOf(kind metadata.ResourceType) []createEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []createEvent
	for _, e := range b.creates {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (b *fakeBackend) destroyCount() map[metadata.Handle]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[metadata.Handle]int, len(b.destroys))
	for h, n := range b.destroys {
		out[h] = n
	}
	return out
}

// fakeSource is an in-memory archive.
type fakeSource struct {
	hashes  map[metadata.ResourceType][]metadata.Hash
	entries map[metadata.RecordRef][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		hashes:  map[metadata.ResourceType][]metadata.Hash{},
		entries: map[metadata.RecordRef][]byte{},
	}
}

func (s *fakeSource) add(t *testing.T, kind metadata.ResourceType, hash metadata.Hash, record any) {
	t.Helper()
	blob, err := json.Marshal(record)
	require.NoError(t, err)
	s.hashes[kind] = append(s.hashes[kind], hash)
	s.entries[metadata.RecordRef{Kind: kind, Hash: hash}] = blob
}

func (s *fakeSource) HashList(kind metadata.ResourceType) ([]metadata.Hash, error) {
	return s.hashes[kind], nil
}

func (s *fakeSource) ReadEntry(kind metadata.ResourceType, hash metadata.Hash) ([]byte, error) {
	blob, exists := s.entries[metadata.RecordRef{Kind: kind, Hash: hash}]
	if !exists {
		return nil, fmt.Errorf("no entry for %s %s", kind, hash)
	}
	return blob, nil
}

type appInfoRecord struct {
	ApplicationInfo *metadata.ApplicationInfo `json:"applicationInfo"`
	Features        *metadata.DeviceFeatures  `json:"physicalDeviceFeatures"`
}

func addAppInfo(t *testing.T, src *fakeSource) {
	src.add(t, metadata.ResourceTypeApplicationInfo, 0x1, appInfoRecord{
		ApplicationInfo: &metadata.ApplicationInfo{
			APIVersion:      1 << 22,
			ApplicationName: "replay-test",
		},
		Features: &metadata.DeviceFeatures{SamplerAnisotropy: 1},
	})
}

func shaderModuleRecord() metadata.ShaderModuleConfig {
	return metadata.ShaderModuleConfig{Code: metadata.SPIRV{0x07230203, 0x00010000, 0xdeadbeef}}
}

func graphicsRecord(module, layout, renderPass metadata.Hash) metadata.GraphicsPipelineConfig {
	return metadata.GraphicsPipelineConfig{
		Stages: []metadata.ShaderStageConfig{
			{Stage: 1, ModuleHash: module, Name: "main"},
		},
		LayoutHash:     layout,
		RenderPassHash: renderPass,
	}
}

func runReplay(t *testing.T, src *fakeSource, backend *fakeBackend, opts replay.Options,
	filterGraphics, filterCompute []metadata.Hash) (*replay.Replayer, *replay.Report) {
	t.Helper()
	replayer := replay.New(backend, opts, filterGraphics, filterCompute)
	driver := replay.NewDriver(replayer, src, state.NewDeserializer(replayer))
	report, err := driver.Run()
	require.NoError(t, err)
	return replayer, report
}

func TestTrivialArchive(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeSampler, 0x01, metadata.SamplerConfig{MagFilter: 1})

	backend := newFakeBackend()
	replayer, report := runReplay(t, src, backend, replay.Options{NumThreads: 2}, nil, nil)

	assert.Equal(t, 1, backend.initCount)
	assert.Equal(t, "replay-test", backend.appInfo.ApplicationName)
	assert.Equal(t, 1, report.Samplers)
	assert.Equal(t, 0, report.ShaderModules)
	assert.Equal(t, 0, report.GraphicsPipelines+report.ComputePipelines)
	assert.Equal(t, uint64(0), report.ShaderModuleCount)

	require.NoError(t, replayer.Close())
	assert.Equal(t, 1, backend.shutdowns)
}

func TestOrderDependency(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeShaderModule, 0xA, shaderModuleRecord())
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB, metadata.PipelineLayoutConfig{})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC, graphicsRecord(0xA, 0xB, 0xD))

	backend := newFakeBackend()
	replayer, report := runReplay(t, src, backend, replay.Options{NumThreads: 8}, nil, nil)
	defer replayer.Close()

	modules := backend.createsOf(metadata.ResourceTypeShaderModule)
	require.Len(t, modules, 1)

	pipelines := backend.createsOf(metadata.ResourceTypeGraphicsPipeline)
	require.Len(t, pipelines, 1)
	require.Len(t, pipelines[0].moduleHandles, 1)
	// The shader-module slot must hold the live handle at create time.
	assert.Equal(t, modules[0].handle, pipelines[0].moduleHandles[0])

	assert.Equal(t, uint64(1), report.GraphicsPipelineCount)
	assert.Equal(t, 1, report.PipelineLayouts)
	assert.Equal(t, 1, report.RenderPasses)
}

func TestFilterGraphics(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeShaderModule, 0xA, shaderModuleRecord())
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB, metadata.PipelineLayoutConfig{})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	for _, hash := range []metadata.Hash{0x1, 0x2, 0x3} {
		src.add(t, metadata.ResourceTypeGraphicsPipeline, hash, graphicsRecord(0xA, 0xB, 0xD))
	}

	backend := newFakeBackend()
	replayer, report := runReplay(t, src, backend,
		replay.Options{NumThreads: 4}, []metadata.Hash{0x2}, nil)
	defer replayer.Close()

	assert.Len(t, backend.createsOf(metadata.ResourceTypeGraphicsPipeline), 1)
	assert.Equal(t, uint64(1), report.GraphicsPipelineCount)
	assert.Equal(t, 1, report.GraphicsPipelines)
}

func TestLoopCountRepetitions(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeShaderModule, 0xA, shaderModuleRecord())

	backend := newFakeBackend()
	replayer, report := runReplay(t, src, backend,
		replay.Options{NumThreads: 1, LoopCount: 3}, nil, nil)

	modules := backend.createsOf(metadata.ResourceTypeShaderModule)
	require.Len(t, modules, 3)
	assert.Equal(t, uint64(3), report.ShaderModuleCount)

	// The two intermediate handles were destroyed before each re-create; the
	// third is still live.
	destroys := backend.destroyCount()
	assert.Equal(t, 1, destroys[modules[0].handle])
	assert.Equal(t, 1, destroys[modules[1].handle])
	assert.Zero(t, destroys[modules[2].handle])

	require.NoError(t, replayer.Close())
	destroys = backend.destroyCount()
	assert.Equal(t, 1, destroys[modules[2].handle])
}

func TestFailureIsolation(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeShaderModule, 0xA1, shaderModuleRecord())
	src.add(t, metadata.ResourceTypeShaderModule, 0xA2, shaderModuleRecord())
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB, metadata.PipelineLayoutConfig{})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC1, graphicsRecord(0xA1, 0xB, 0xD))
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC2, graphicsRecord(0xA2, 0xB, 0xD))

	backend := newFakeBackend()
	backend.failGraphicsPipeline = func(cfg *metadata.GraphicsPipelineConfig) bool {
		return cfg.Stages[0].ModuleHash == 0xA1
	}

	replayer, report := runReplay(t, src, backend, replay.Options{NumThreads: 4}, nil, nil)
	defer replayer.Close()

	assert.Equal(t, uint64(1), report.GraphicsPipelineCount)
	assert.Len(t, backend.createsOf(metadata.ResourceTypeGraphicsPipeline), 1)
	// Both hashes were enqueued; the failed one keeps a null registry slot.
	assert.Equal(t, 2, report.GraphicsPipelines)
}

func TestBarrierOrdersPipelinesAfterModules(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	for i := 0; i < 32; i++ {
		src.add(t, metadata.ResourceTypeShaderModule, metadata.Hash(0xA00+i), shaderModuleRecord())
	}
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB, metadata.PipelineLayoutConfig{})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC1, graphicsRecord(0xA00, 0xB, 0xD))
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC2, graphicsRecord(0xA1F, 0xB, 0xD))

	backend := newFakeBackend()
	replayer, _ := runReplay(t, src, backend, replay.Options{NumThreads: 1}, nil, nil)
	defer replayer.Close()

	lastModule, firstPipeline := -1, -1
	for i, e := range backend.creates {
		switch e.kind {
		case metadata.ResourceTypeShaderModule:
			lastModule = i
		case metadata.ResourceTypeGraphicsPipeline:
			if firstPipeline < 0 {
				firstPipeline = i
			}
		}
	}
	require.GreaterOrEqual(t, lastModule, 0)
	require.GreaterOrEqual(t, firstPipeline, 0)
	assert.Less(t, lastModule, firstPipeline,
		"no pipeline create may be observed before the last shader-module create")
}

func TestTeardownDestroysEverythingOnce(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	src.add(t, metadata.ResourceTypeSampler, 0x10, metadata.SamplerConfig{})
	src.add(t, metadata.ResourceTypeDescriptorSetLayout, 0x11, metadata.DescriptorSetLayoutConfig{})
	src.add(t, metadata.ResourceTypeShaderModule, 0xA, shaderModuleRecord())
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB,
		metadata.PipelineLayoutConfig{SetLayoutHashes: []metadata.Hash{0x11}})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC, graphicsRecord(0xA, 0xB, 0xD))
	src.add(t, metadata.ResourceTypeComputePipeline, 0xE, metadata.ComputePipelineConfig{
		Stage:      metadata.ShaderStageConfig{Stage: 32, ModuleHash: 0xA},
		LayoutHash: 0xB,
	})

	backend := newFakeBackend()
	replayer, report := runReplay(t, src, backend, replay.Options{NumThreads: 4, LoopCount: 2}, nil, nil)
	assert.Equal(t, 7, report.TotalObjects())

	require.NoError(t, replayer.Close())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.live, "every created handle must be destroyed")
	for _, e := range backend.creates {
		assert.Equal(t, 1, backend.destroys[e.handle], "handle %d destroyed exactly once", e.handle)
	}
}

func TestStatsMatchSuccessfulCreates(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)
	for i := 0; i < 4; i++ {
		src.add(t, metadata.ResourceTypeShaderModule, metadata.Hash(0xA00+i), shaderModuleRecord())
	}
	// One module that the backend will refuse; the counters must only see
	// successes.
	src.add(t, metadata.ResourceTypeShaderModule, 0xA04,
		metadata.ShaderModuleConfig{Code: metadata.SPIRV{0x1}})
	src.add(t, metadata.ResourceTypePipelineLayout, 0xB, metadata.PipelineLayoutConfig{})
	src.add(t, metadata.ResourceTypeRenderPass, 0xD, metadata.RenderPassConfig{})
	src.add(t, metadata.ResourceTypeGraphicsPipeline, 0xC1, graphicsRecord(0xA00, 0xB, 0xD))
	src.add(t, metadata.ResourceTypeComputePipeline, 0xE1, metadata.ComputePipelineConfig{
		Stage:      metadata.ShaderStageConfig{ModuleHash: 0xA01},
		LayoutHash: 0xB,
	})

	backend := newFakeBackend()
	backend.failShaderModule = func(cfg *metadata.ShaderModuleConfig) bool {
		return len(cfg.Code) == 1
	}

	replayer, report := runReplay(t, src, backend, replay.Options{NumThreads: 2}, nil, nil)
	defer replayer.Close()

	assert.Equal(t, uint64(len(backend.createsOf(metadata.ResourceTypeShaderModule))), report.ShaderModuleCount)
	assert.Equal(t, uint64(len(backend.createsOf(metadata.ResourceTypeGraphicsPipeline))), report.GraphicsPipelineCount)
	assert.Equal(t, uint64(len(backend.createsOf(metadata.ResourceTypeComputePipeline))), report.ComputePipelineCount)
	assert.Positive(t, report.ShaderModuleTime)
}

func TestPipelineCachePersistedOnClose(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)

	backend := newFakeBackend()
	backend.cacheBlob = []byte("opaque-driver-blob")

	cachePath := t.TempDir() + "/pipeline.cache"
	replayer, _ := runReplay(t, src, backend, replay.Options{
		NumThreads:              1,
		OnDiskPipelineCachePath: cachePath,
	}, nil, nil)
	require.NoError(t, replayer.Close())

	assert.Equal(t, 1, backend.cacheReads)
	written, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, backend.cacheBlob, written)
}

func TestDeviceCreationFailureIsFatal(t *testing.T) {
	src := newFakeSource()
	addAppInfo(t, src)

	backend := newFakeBackend()
	backend.failInitialize = true

	replayer := replay.New(backend, replay.Options{NumThreads: 1}, nil, nil)
	driver := replay.NewDriver(replayer, src, state.NewDeserializer(replayer))
	_, err := driver.Run()
	require.Error(t, err)
	require.NoError(t, replayer.Close())
}
