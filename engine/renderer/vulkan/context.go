package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	Device *VulkanDevice

	// Immutable after lazy initialization; read concurrently by the worker
	// pool without locks.
	PipelineCache vk.PipelineCache
}
