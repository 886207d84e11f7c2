package replay

import (
	"sync/atomic"
	"time"
)

// replayStats accumulates per-category create counts and wall time from the
// worker pool. Written with atomics from workers, read by the driver only
// after the final barrier.
type replayStats struct {
	shaderModuleCount     atomic.Uint64
	graphicsPipelineCount atomic.Uint64
	computePipelineCount  atomic.Uint64

	shaderModuleNs     atomic.Uint64
	graphicsPipelineNs atomic.Uint64
	computePipelineNs  atomic.Uint64
}

func (s *replayStats) record(kind statKind, elapsed time.Duration) {
	switch kind {
	case statShaderModule:
		s.shaderModuleCount.Add(1)
		s.shaderModuleNs.Add(uint64(elapsed.Nanoseconds()))
	case statGraphicsPipeline:
		s.graphicsPipelineCount.Add(1)
		s.graphicsPipelineNs.Add(uint64(elapsed.Nanoseconds()))
	case statComputePipeline:
		s.computePipelineCount.Add(1)
		s.computePipelineNs.Add(uint64(elapsed.Nanoseconds()))
	}
}

type statKind uint8

const (
	statShaderModule statKind = iota
	statGraphicsPipeline
	statComputePipeline
)

/**
 * @brief Aggregate outcome of one replay run, assembled after the final
 * barrier.
 */
type Report struct {
	RunID string

	Samplers             int
	DescriptorSetLayouts int
	PipelineLayouts      int
	RenderPasses         int
	ShaderModules        int
	GraphicsPipelines    int
	ComputePipelines     int

	ShaderModuleCount     uint64
	GraphicsPipelineCount uint64
	ComputePipelineCount  uint64

	ShaderModuleTime     time.Duration
	GraphicsPipelineTime time.Duration
	ComputePipelineTime  time.Duration
}

// TotalObjects is the number of registry entries across every category.
func (r *Report) TotalObjects() int {
	return r.Samplers + r.DescriptorSetLayouts + r.PipelineLayouts +
		r.RenderPasses + r.ShaderModules + r.GraphicsPipelines + r.ComputePipelines
}
