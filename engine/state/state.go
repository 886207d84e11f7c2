package state

import (
	"encoding/json"
	"fmt"

	"github.com/spaghettifunk/relic/engine/renderer/metadata"
	"github.com/spaghettifunk/relic/engine/replay"
)

/**
 * @brief Deserializes one archive record at a time and drives the replayer's
 * facade. Keeps a boxed handle per (category, hash) so that references inside
 * later records resolve against earlier ones: trivial references resolve by
 * value at parse time, shader-module references resolve to the slot pointer
 * so the worker pool can publish into it after the record is parsed.
 */
type Deserializer struct {
	consumer replay.Consumer

	samplers          map[metadata.Hash]*metadata.Handle
	setLayouts        map[metadata.Hash]*metadata.Handle
	pipelineLayouts   map[metadata.Hash]*metadata.Handle
	renderPasses      map[metadata.Hash]*metadata.Handle
	shaderModules     map[metadata.Hash]*metadata.Handle
	graphicsPipelines map[metadata.Hash]*metadata.Handle
	computePipelines  map[metadata.Hash]*metadata.Handle
}

func NewDeserializer(consumer replay.Consumer) *Deserializer {
	return &Deserializer{
		consumer:          consumer,
		samplers:          make(map[metadata.Hash]*metadata.Handle),
		setLayouts:        make(map[metadata.Hash]*metadata.Handle),
		pipelineLayouts:   make(map[metadata.Hash]*metadata.Handle),
		renderPasses:      make(map[metadata.Hash]*metadata.Handle),
		shaderModules:     make(map[metadata.Hash]*metadata.Handle),
		graphicsPipelines: make(map[metadata.Hash]*metadata.Handle),
		computePipelines:  make(map[metadata.Hash]*metadata.Handle),
	}
}

// slot returns the stable box for hash, creating a null one on first use.
func slot(slots map[metadata.Hash]*metadata.Handle, hash metadata.Hash) *metadata.Handle {
	if s, exists := slots[hash]; exists {
		return s
	}
	s := new(metadata.Handle)
	slots[hash] = s
	return s
}

// Parse unmarshals the record for (kind, hash) and invokes the matching
// facade operation. A malformed record is an error the caller may skip.
func (d *Deserializer) Parse(kind metadata.ResourceType, hash metadata.Hash, blob []byte) error {
	switch kind {
	case metadata.ResourceTypeApplicationInfo:
		return d.parseApplicationInfo(blob)
	case metadata.ResourceTypeSampler:
		return d.parseSampler(hash, blob)
	case metadata.ResourceTypeDescriptorSetLayout:
		return d.parseDescriptorSetLayout(hash, blob)
	case metadata.ResourceTypePipelineLayout:
		return d.parsePipelineLayout(hash, blob)
	case metadata.ResourceTypeRenderPass:
		return d.parseRenderPass(hash, blob)
	case metadata.ResourceTypeShaderModule:
		return d.parseShaderModule(hash, blob)
	case metadata.ResourceTypeGraphicsPipeline:
		return d.parseGraphicsPipeline(hash, blob)
	case metadata.ResourceTypeComputePipeline:
		return d.parseComputePipeline(hash, blob)
	}
	return fmt.Errorf("unknown resource type %d", kind)
}

func (d *Deserializer) parseApplicationInfo(blob []byte) error {
	var record struct {
		ApplicationInfo *metadata.ApplicationInfo `json:"applicationInfo"`
		Features        *metadata.DeviceFeatures  `json:"physicalDeviceFeatures"`
	}
	if err := json.Unmarshal(blob, &record); err != nil {
		return fmt.Errorf("malformed application info record: %w", err)
	}
	return d.consumer.SetApplicationInfo(record.ApplicationInfo, record.Features)
}

func (d *Deserializer) parseSampler(hash metadata.Hash, blob []byte) error {
	var cfg metadata.SamplerConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed sampler record: %w", err)
	}
	return d.consumer.CreateSampler(hash, &cfg, slot(d.samplers, hash))
}

func (d *Deserializer) parseDescriptorSetLayout(hash metadata.Hash, blob []byte) error {
	var cfg metadata.DescriptorSetLayoutConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed descriptor set layout record: %w", err)
	}
	return d.consumer.CreateDescriptorSetLayout(hash, &cfg, slot(d.setLayouts, hash))
}

func (d *Deserializer) parsePipelineLayout(hash metadata.Hash, blob []byte) error {
	var cfg metadata.PipelineLayoutConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed pipeline layout record: %w", err)
	}

	// Set layouts are trivial objects replayed earlier; resolve by value.
	cfg.SetLayouts = make([]metadata.Handle, len(cfg.SetLayoutHashes))
	for i, h := range cfg.SetLayoutHashes {
		cfg.SetLayouts[i] = *slot(d.setLayouts, h)
	}
	return d.consumer.CreatePipelineLayout(hash, &cfg, slot(d.pipelineLayouts, hash))
}

func (d *Deserializer) parseRenderPass(hash metadata.Hash, blob []byte) error {
	var cfg metadata.RenderPassConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed render pass record: %w", err)
	}
	return d.consumer.CreateRenderPass(hash, &cfg, slot(d.renderPasses, hash))
}

func (d *Deserializer) parseShaderModule(hash metadata.Hash, blob []byte) error {
	var cfg metadata.ShaderModuleConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed shader module record: %w", err)
	}
	return d.consumer.CreateShaderModule(hash, &cfg, slot(d.shaderModules, hash))
}

func (d *Deserializer) parseGraphicsPipeline(hash metadata.Hash, blob []byte) error {
	var cfg metadata.GraphicsPipelineConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed graphics pipeline record: %w", err)
	}

	cfg.Layout = *slot(d.pipelineLayouts, cfg.LayoutHash)
	cfg.RenderPass = *slot(d.renderPasses, cfg.RenderPassHash)
	// Shader modules are built concurrently; hand the worker the slot
	// pointer, not the value. The phase barrier orders the write.
	for i := range cfg.Stages {
		cfg.Stages[i].Module = slot(d.shaderModules, cfg.Stages[i].ModuleHash)
	}
	return d.consumer.CreateGraphicsPipeline(hash, &cfg, slot(d.graphicsPipelines, hash))
}

func (d *Deserializer) parseComputePipeline(hash metadata.Hash, blob []byte) error {
	var cfg metadata.ComputePipelineConfig
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return fmt.Errorf("malformed compute pipeline record: %w", err)
	}

	cfg.Layout = *slot(d.pipelineLayouts, cfg.LayoutHash)
	cfg.Stage.Module = slot(d.shaderModules, cfg.Stage.ModuleHash)
	return d.consumer.CreateComputePipeline(hash, &cfg, slot(d.computePipelines, hash))
}
