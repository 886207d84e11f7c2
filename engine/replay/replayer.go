package replay

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/** @brief Tunables for one replay run. */
type Options struct {
	/** @brief Worker goroutine count. Defaults to the CPU count, floored at 1. */
	NumThreads int
	/** @brief How many times each deferred object is re-created. A driver-benchmark knob. */
	LoopCount int
	/** @brief Whether a pipeline cache is created on the device. */
	PipelineCache bool
	/** @brief If set, the cache blob is seeded from and persisted to this path. Implies PipelineCache. */
	OnDiskPipelineCachePath string
	/** @brief How the graphics/compute filter sets are interpreted. */
	FilterMode FilterMode
}

func (o *Options) normalize() {
	if o.NumThreads < 1 {
		o.NumThreads = runtime.NumCPU()
	}
	if o.NumThreads < 1 {
		o.NumThreads = 1
	}
	if o.LoopCount < 1 {
		o.LoopCount = 1
	}
	if o.OnDiskPipelineCachePath != "" {
		o.PipelineCache = true
	}
}

/**
 * @brief The staged replay scheduler. Implements the Consumer facade the
 * deserializer drives: trivial categories are created inline on the driver
 * goroutine, deferred ones are queued for the worker pool. One registry per
 * category tracks every created handle for teardown.
 */
type Replayer struct {
	opts    Options
	backend Backend

	filterGraphics map[metadata.Hash]struct{}
	filterCompute  map[metadata.Hash]struct{}

	queue *workQueue
	wg    sync.WaitGroup
	stats replayStats

	samplers          *HandleRegistry
	setLayouts        *HandleRegistry
	pipelineLayouts   *HandleRegistry
	renderPasses      *HandleRegistry
	shaderModules     *HandleRegistry
	graphicsPipelines *HandleRegistry
	computePipelines  *HandleRegistry

	runID       string
	deviceReady bool
}

// New builds the scheduler and starts its worker pool. The filter slices are
// copied into sets; the caller may discard them afterwards.
func New(backend Backend, opts Options, filterGraphics, filterCompute []metadata.Hash) *Replayer {
	opts.normalize()

	r := &Replayer{
		opts:              opts,
		backend:           backend,
		filterGraphics:    hashSet(filterGraphics),
		filterCompute:     hashSet(filterCompute),
		queue:             newWorkQueue(),
		samplers:          NewHandleRegistry(),
		setLayouts:        NewHandleRegistry(),
		pipelineLayouts:   NewHandleRegistry(),
		renderPasses:      NewHandleRegistry(),
		shaderModules:     NewHandleRegistry(),
		graphicsPipelines: NewHandleRegistry(),
		computePipelines:  NewHandleRegistry(),
		runID:             core.IdentifierAcquireNew(),
	}

	for i := 0; i < r.opts.NumThreads; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.worker()
		}()
	}

	return r
}

func hashSet(hashes []metadata.Hash) map[metadata.Hash]struct{} {
	set := make(map[metadata.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}

// SetApplicationInfo triggers lazy device creation on the first (and only)
// application-info record. Failure here is fatal to the run.
func (r *Replayer) SetApplicationInfo(info *metadata.ApplicationInfo, features *metadata.DeviceFeatures) error {
	if r.deviceReady {
		return nil
	}

	clock := core.NewClock()
	clock.Start()
	if err := r.backend.Initialize(info, features); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	clock.Update()
	r.deviceReady = true

	core.LogInfo("Creating device took: %d ms", clock.Elapsed().Milliseconds())

	if info != nil {
		core.LogInfo("Replaying for application:")
		core.LogInfo("  apiVersion: %d.%d.%d",
			info.APIVersion>>22, (info.APIVersion>>12)&0x3ff, info.APIVersion&0xfff)
		core.LogInfo("  engineVersion: %d", info.EngineVersion)
		core.LogInfo("  applicationVersion: %d", info.ApplicationVersion)
		if info.EngineName != "" {
			core.LogInfo("  engineName: %s", info.EngineName)
		}
		if info.ApplicationName != "" {
			core.LogInfo("  applicationName: %s", info.ApplicationName)
		}
	}
	return nil
}

func (r *Replayer) CreateSampler(hash metadata.Hash, cfg *metadata.SamplerConfig, out *metadata.Handle) error {
	// Playback in-order.
	handle, err := r.backend.CreateSampler(cfg)
	if err != nil {
		core.LogError("creating sampler %s failed: %s", hash, err)
		return err
	}
	*out = handle
	*r.samplers.GetOrInsert(hash) = handle
	return nil
}

func (r *Replayer) CreateDescriptorSetLayout(hash metadata.Hash, cfg *metadata.DescriptorSetLayoutConfig, out *metadata.Handle) error {
	// Playback in-order.
	handle, err := r.backend.CreateDescriptorSetLayout(cfg)
	if err != nil {
		core.LogError("creating descriptor set layout %s failed: %s", hash, err)
		return err
	}
	*out = handle
	*r.setLayouts.GetOrInsert(hash) = handle
	return nil
}

func (r *Replayer) CreatePipelineLayout(hash metadata.Hash, cfg *metadata.PipelineLayoutConfig, out *metadata.Handle) error {
	// Playback in-order.
	handle, err := r.backend.CreatePipelineLayout(cfg)
	if err != nil {
		core.LogError("creating pipeline layout %s failed: %s", hash, err)
		return err
	}
	*out = handle
	*r.pipelineLayouts.GetOrInsert(hash) = handle
	return nil
}

func (r *Replayer) CreateRenderPass(hash metadata.Hash, cfg *metadata.RenderPassConfig, out *metadata.Handle) error {
	// Playback in-order.
	handle, err := r.backend.CreateRenderPass(cfg)
	if err != nil {
		core.LogError("creating render pass %s failed: %s", hash, err)
		return err
	}
	*out = handle
	*r.renderPasses.GetOrInsert(hash) = handle
	return nil
}

func (r *Replayer) CreateShaderModule(hash metadata.Hash, cfg *metadata.ShaderModuleConfig, out *metadata.Handle) error {
	r.queue.push(workItem{
		hash:         hash,
		kind:         metadata.ResourceTypeShaderModule,
		shaderModule: cfg,
		output:       out,
		registrySlot: r.shaderModules.GetOrInsert(hash),
	})
	return nil
}

func (r *Replayer) CreateGraphicsPipeline(hash metadata.Hash, cfg *metadata.GraphicsPipelineConfig, out *metadata.Handle) error {
	if !r.replayGraphics(hash) {
		*out = metadata.NullHandle
		return nil
	}
	r.queue.push(workItem{
		hash:         hash,
		kind:         metadata.ResourceTypeGraphicsPipeline,
		graphics:     cfg,
		output:       out,
		registrySlot: r.graphicsPipelines.GetOrInsert(hash),
	})
	return nil
}

func (r *Replayer) CreateComputePipeline(hash metadata.Hash, cfg *metadata.ComputePipelineConfig, out *metadata.Handle) error {
	if !r.replayCompute(hash) {
		*out = metadata.NullHandle
		return nil
	}
	r.queue.push(workItem{
		hash:         hash,
		kind:         metadata.ResourceTypeComputePipeline,
		compute:      cfg,
		output:       out,
		registrySlot: r.computePipelines.GetOrInsert(hash),
	})
	return nil
}

// Sync blocks until the work queue has drained and every in-flight item has
// completed.
func (r *Replayer) Sync() {
	r.queue.barrier()
}

func (r *Replayer) worker() {
	for {
		item, ok := r.queue.popBlocking()
		if !ok {
			return
		}

		switch item.kind {
		case metadata.ResourceTypeShaderModule:
			r.buildLoop(item, statShaderModule, func() (metadata.Handle, error) {
				return r.backend.CreateShaderModule(item.shaderModule)
			})
		case metadata.ResourceTypeGraphicsPipeline:
			r.buildLoop(item, statGraphicsPipeline, func() (metadata.Handle, error) {
				return r.backend.CreateGraphicsPipeline(item.graphics)
			})
		case metadata.ResourceTypeComputePipeline:
			r.buildLoop(item, statComputePipeline, func() (metadata.Handle, error) {
				return r.backend.CreateComputePipeline(item.compute)
			})
		}

		r.queue.markCompleted()
	}
}

// buildLoop re-creates one object LoopCount times, destroying the previous
// handle before each create so repetitions never leak. On failure the slot is
// left null and replay continues.
func (r *Replayer) buildLoop(item workItem, kind statKind, create func() (metadata.Handle, error)) {
	for i := 0; i < r.opts.LoopCount; i++ {
		if *item.registrySlot != metadata.NullHandle {
			r.backend.Destroy(item.kind, *item.registrySlot)
		}
		*item.registrySlot = metadata.NullHandle

		start := time.Now()
		handle, err := create()
		if err != nil {
			core.LogError("failed to create %s for hash %s: %s", item.kind, item.hash, err)
			continue
		}

		r.stats.record(kind, time.Since(start))
		*item.output = handle
		*item.registrySlot = handle
	}
}

// Report assembles the aggregate outcome. Only meaningful after Sync.
func (r *Replayer) Report() *Report {
	return &Report{
		RunID:                 r.runID,
		Samplers:              r.samplers.Len(),
		DescriptorSetLayouts:  r.setLayouts.Len(),
		PipelineLayouts:       r.pipelineLayouts.Len(),
		RenderPasses:          r.renderPasses.Len(),
		ShaderModules:         r.shaderModules.Len(),
		GraphicsPipelines:     r.graphicsPipelines.Len(),
		ComputePipelines:      r.computePipelines.Len(),
		ShaderModuleCount:     r.stats.shaderModuleCount.Load(),
		GraphicsPipelineCount: r.stats.graphicsPipelineCount.Load(),
		ComputePipelineCount:  r.stats.computePipelineCount.Load(),
		ShaderModuleTime:      time.Duration(r.stats.shaderModuleNs.Load()),
		GraphicsPipelineTime:  time.Duration(r.stats.graphicsPipelineNs.Load()),
		ComputePipelineTime:   time.Duration(r.stats.computePipelineNs.Load()),
	}
}

// Close signals the worker pool to exit, joins it, persists the pipeline
// cache if requested, then destroys every registered handle and shuts the
// backend down. Callers run a barrier before Close, so discarded queue items
// only occur on abnormal exits.
func (r *Replayer) Close() error {
	r.queue.shutdown()
	r.wg.Wait()

	if r.deviceReady && r.opts.PipelineCache && r.opts.OnDiskPipelineCachePath != "" {
		if data, err := r.backend.CacheData(); err != nil {
			core.LogError("failed to query pipeline cache data: %s", err)
		} else if len(data) > 0 {
			if err := os.WriteFile(r.opts.OnDiskPipelineCachePath, data, 0o644); err != nil {
				core.LogError("failed to write pipeline cache data to disk: %s", err)
			}
		}
	}

	r.graphicsPipelines.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeGraphicsPipeline, h)
	})
	r.computePipelines.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeComputePipeline, h)
	})
	r.shaderModules.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeShaderModule, h)
	})
	r.renderPasses.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeRenderPass, h)
	})
	r.pipelineLayouts.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypePipelineLayout, h)
	})
	r.setLayouts.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeDescriptorSetLayout, h)
	})
	r.samplers.DrainAndDestroy(func(h metadata.Handle) {
		r.backend.Destroy(metadata.ResourceTypeSampler, h)
	})

	return r.backend.Shutdown()
}
