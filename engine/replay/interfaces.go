package replay

import (
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/**
 * @brief The device surface the replayer schedules against. The production
 * implementation lives in engine/renderer/vulkan; tests substitute an
 * in-memory fake. Handles returned by the Create calls are opaque and only
 * meaningful to the backend that produced them.
 */
type Backend interface {
	// Initialize performs lazy device creation. It is called exactly once,
	// when the archive's application-info record is replayed.
	Initialize(info *metadata.ApplicationInfo, features *metadata.DeviceFeatures) error

	CreateSampler(cfg *metadata.SamplerConfig) (metadata.Handle, error)
	CreateDescriptorSetLayout(cfg *metadata.DescriptorSetLayoutConfig) (metadata.Handle, error)
	CreatePipelineLayout(cfg *metadata.PipelineLayoutConfig) (metadata.Handle, error)
	CreateRenderPass(cfg *metadata.RenderPassConfig) (metadata.Handle, error)
	CreateShaderModule(cfg *metadata.ShaderModuleConfig) (metadata.Handle, error)
	CreateGraphicsPipeline(cfg *metadata.GraphicsPipelineConfig) (metadata.Handle, error)
	CreateComputePipeline(cfg *metadata.ComputePipelineConfig) (metadata.Handle, error)

	// Destroy releases one created object. Never called with the null handle.
	Destroy(kind metadata.ResourceType, handle metadata.Handle)

	// CacheData returns the opaque pipeline-cache blob, or nil when no cache
	// is active.
	CacheData() ([]byte, error)

	Shutdown() error
}

/**
 * @brief The callback surface the descriptor deserializer drives. Trivial
 * categories are created synchronously on the caller's goroutine; deferred
 * categories are queued for the worker pool and `out` is populated once the
 * matching barrier has been crossed.
 */
type Consumer interface {
	SetApplicationInfo(info *metadata.ApplicationInfo, features *metadata.DeviceFeatures) error

	CreateSampler(hash metadata.Hash, cfg *metadata.SamplerConfig, out *metadata.Handle) error
	CreateDescriptorSetLayout(hash metadata.Hash, cfg *metadata.DescriptorSetLayoutConfig, out *metadata.Handle) error
	CreatePipelineLayout(hash metadata.Hash, cfg *metadata.PipelineLayoutConfig, out *metadata.Handle) error
	CreateRenderPass(hash metadata.Hash, cfg *metadata.RenderPassConfig, out *metadata.Handle) error
	CreateShaderModule(hash metadata.Hash, cfg *metadata.ShaderModuleConfig, out *metadata.Handle) error
	CreateGraphicsPipeline(hash metadata.Hash, cfg *metadata.GraphicsPipelineConfig, out *metadata.Handle) error
	CreateComputePipeline(hash metadata.Hash, cfg *metadata.ComputePipelineConfig, out *metadata.Handle) error

	// Sync blocks until every queued work item has completed.
	Sync()
}

// Source enumerates and yields serialized records of a replay archive.
type Source interface {
	HashList(kind metadata.ResourceType) ([]metadata.Hash, error)
	ReadEntry(kind metadata.ResourceType, hash metadata.Hash) ([]byte, error)
}

// Parser deserializes one record and invokes the matching Consumer operation.
type Parser interface {
	Parse(kind metadata.ResourceType, hash metadata.Hash, blob []byte) error
}
