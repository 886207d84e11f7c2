package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

// Create calls below turn the deserialized configs back into Vulkan create
// infos and register the resulting object in the handle table. Configs carry
// raw Vulkan enum values, so the conversions are plain casts.

func (vb *VulkanBackend) CreateSampler(cfg *metadata.SamplerConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		Flags:                   vk.SamplerCreateFlags(cfg.Flags),
		MagFilter:               vk.Filter(cfg.MagFilter),
		MinFilter:               vk.Filter(cfg.MinFilter),
		MipmapMode:              vk.SamplerMipmapMode(cfg.MipmapMode),
		AddressModeU:            vk.SamplerAddressMode(cfg.AddressModeU),
		AddressModeV:            vk.SamplerAddressMode(cfg.AddressModeV),
		AddressModeW:            vk.SamplerAddressMode(cfg.AddressModeW),
		MipLodBias:              cfg.MipLodBias,
		AnisotropyEnable:        vk.Bool32(cfg.AnisotropyEnable),
		MaxAnisotropy:           cfg.MaxAnisotropy,
		CompareEnable:           vk.Bool32(cfg.CompareEnable),
		CompareOp:               vk.CompareOp(cfg.CompareOp),
		MinLod:                  cfg.MinLod,
		MaxLod:                  cfg.MaxLod,
		BorderColor:             vk.BorderColor(cfg.BorderColor),
		UnnormalizedCoordinates: vk.Bool32(cfg.UnnormalizedCoordinates),
	}
	createInfo.Deref()

	var sampler vk.Sampler
	if err := vb.lockPool.SafeCall(SamplerManagement, func() error {
		if res := vk.CreateSampler(vb.context.Device.LogicalDevice, &createInfo, vb.context.Allocator, &sampler); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreateSampler failed with %s", VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeSampler, sampler: sampler}), nil
}

func (vb *VulkanBackend) CreateDescriptorSetLayout(cfg *metadata.DescriptorSetLayoutConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	bindings := make([]vk.DescriptorSetLayoutBinding, len(cfg.Bindings))
	for i, b := range cfg.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.DescriptorType),
			DescriptorCount: b.DescriptorCount,
			StageFlags:      vk.ShaderStageFlags(b.StageFlags),
		}
		bindings[i].Deref()
	}

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(cfg.Flags),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	createInfo.Deref()

	var layout vk.DescriptorSetLayout
	if err := vb.lockPool.SafeCall(DescriptorManagement, func() error {
		if res := vk.CreateDescriptorSetLayout(vb.context.Device.LogicalDevice, &createInfo, vb.context.Allocator, &layout); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeDescriptorSetLayout, setLayout: layout}), nil
}

func (vb *VulkanBackend) CreatePipelineLayout(cfg *metadata.PipelineLayoutConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	setLayouts := make([]vk.DescriptorSetLayout, len(cfg.SetLayouts))
	for i, handle := range cfg.SetLayouts {
		setLayouts[i] = vb.setLayoutFor(handle)
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		Flags:          vk.PipelineLayoutCreateFlags(cfg.Flags),
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}

	if len(cfg.PushConstantRanges) > 0 {
		ranges := make([]vk.PushConstantRange, len(cfg.PushConstantRanges))
		for i, r := range cfg.PushConstantRanges {
			ranges[i] = vk.PushConstantRange{
				StageFlags: vk.ShaderStageFlags(r.StageFlags),
				Offset:     r.Offset,
				Size:       r.Size,
			}
			ranges[i].Deref()
		}
		createInfo.PushConstantRangeCount = uint32(len(ranges))
		createInfo.PPushConstantRanges = ranges
	}
	createInfo.Deref()

	var layout vk.PipelineLayout
	if err := vb.lockPool.SafeCall(LayoutManagement, func() error {
		if res := vk.CreatePipelineLayout(vb.context.Device.LogicalDevice, &createInfo, vb.context.Allocator, &layout); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreatePipelineLayout failed with %s", VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypePipelineLayout, pipelineLayout: layout}), nil
}

func (vb *VulkanBackend) CreateRenderPass(cfg *metadata.RenderPassConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	attachments := make([]vk.AttachmentDescription, len(cfg.Attachments))
	for i, a := range cfg.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Flags:          vk.AttachmentDescriptionFlags(a.Flags),
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoadOp),
			StencilStoreOp: vk.AttachmentStoreOp(a.StencilStoreOp),
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
		attachments[i].Deref()
	}

	subpasses := make([]vk.SubpassDescription, len(cfg.Subpasses))
	for i, s := range cfg.Subpasses {
		subpass := vk.SubpassDescription{
			PipelineBindPoint:       vk.PipelineBindPoint(s.PipelineBindPoint),
			InputAttachmentCount:    uint32(len(s.InputAttachments)),
			PInputAttachments:       attachmentReferences(s.InputAttachments),
			ColorAttachmentCount:    uint32(len(s.ColorAttachments)),
			PColorAttachments:       attachmentReferences(s.ColorAttachments),
			PResolveAttachments:     attachmentReferences(s.ResolveAttachments),
			PreserveAttachmentCount: uint32(len(s.PreserveAttachments)),
			PPreserveAttachments:    s.PreserveAttachments,
		}
		if s.DepthStencilAttachment != nil {
			depthRef := vk.AttachmentReference{
				Attachment: s.DepthStencilAttachment.Attachment,
				Layout:     vk.ImageLayout(s.DepthStencilAttachment.Layout),
			}
			depthRef.Deref()
			subpass.PDepthStencilAttachment = &depthRef
		}
		subpass.Deref()
		subpasses[i] = subpass
	}

	dependencies := make([]vk.SubpassDependency, len(cfg.Dependencies))
	for i, d := range cfg.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:      d.SrcSubpass,
			DstSubpass:      d.DstSubpass,
			SrcStageMask:    vk.PipelineStageFlags(d.SrcStageMask),
			DstStageMask:    vk.PipelineStageFlags(d.DstStageMask),
			SrcAccessMask:   vk.AccessFlags(d.SrcAccessMask),
			DstAccessMask:   vk.AccessFlags(d.DstAccessMask),
			DependencyFlags: vk.DependencyFlags(d.DependencyFlags),
		}
		dependencies[i].Deref()
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		Flags:           vk.RenderPassCreateFlags(cfg.Flags),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	createInfo.Deref()

	var renderPass vk.RenderPass
	if err := vb.lockPool.SafeCall(RenderpassManagement, func() error {
		if res := vk.CreateRenderPass(vb.context.Device.LogicalDevice, &createInfo, vb.context.Allocator, &renderPass); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreateRenderPass failed with %s", VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeRenderPass, renderPass: renderPass}), nil
}

func attachmentReferences(refs []metadata.AttachmentReference) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{
			Attachment: r.Attachment,
			Layout:     vk.ImageLayout(r.Layout),
		}
		out[i].Deref()
	}
	return out
}

func (vb *VulkanBackend) CreateShaderModule(cfg *metadata.ShaderModuleConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		Flags:    vk.ShaderModuleCreateFlags(cfg.Flags),
		CodeSize: uint64(len(cfg.Code) * 4),
		PCode:    []uint32(cfg.Code),
	}
	createInfo.Deref()

	var module vk.ShaderModule
	if err := vb.lockPool.SafeCall(ShaderManagement, func() error {
		if res := vk.CreateShaderModule(vb.context.Device.LogicalDevice, &createInfo, vb.context.Allocator, &module); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("vkCreateShaderModule failed with %s", VulkanResultString(res))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeShaderModule, shaderModule: module}), nil
}

func (vb *VulkanBackend) CreateGraphicsPipeline(cfg *metadata.GraphicsPipelineConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	stages, err := vb.shaderStages(cfg.Stages)
	if err != nil {
		return metadata.NullHandle, err
	}

	// Vertex input
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if cfg.VertexInput != nil {
		bindingDescriptions := make([]vk.VertexInputBindingDescription, len(cfg.VertexInput.Bindings))
		for i, b := range cfg.VertexInput.Bindings {
			bindingDescriptions[i] = vk.VertexInputBindingDescription{
				Binding:   b.Binding,
				Stride:    b.Stride,
				InputRate: vk.VertexInputRate(b.InputRate),
			}
			bindingDescriptions[i].Deref()
		}
		attributeDescriptions := make([]vk.VertexInputAttributeDescription, len(cfg.VertexInput.Attributes))
		for i, a := range cfg.VertexInput.Attributes {
			attributeDescriptions[i] = vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  a.Binding,
				Format:   vk.Format(a.Format),
				Offset:   a.Offset,
			}
			attributeDescriptions[i].Deref()
		}
		vertexInputInfo.VertexBindingDescriptionCount = uint32(len(bindingDescriptions))
		vertexInputInfo.PVertexBindingDescriptions = bindingDescriptions
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(attributeDescriptions))
		vertexInputInfo.PVertexAttributeDescriptions = attributeDescriptions
	}
	vertexInputInfo.Deref()

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	if cfg.InputAssembly != nil {
		inputAssembly.Topology = vk.PrimitiveTopology(cfg.InputAssembly.Topology)
		inputAssembly.PrimitiveRestartEnable = vk.Bool32(cfg.InputAssembly.PrimitiveRestartEnable)
	}
	inputAssembly.Deref()

	// Viewport state. Captured pipelines treat viewports as dynamic; only the
	// counts are replayed.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	if cfg.Viewport != nil {
		viewportState.ViewportCount = cfg.Viewport.ViewportCount
		viewportState.ScissorCount = cfg.Viewport.ScissorCount
	}
	viewportState.Deref()

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:     vk.StructureTypePipelineRasterizationStateCreateInfo,
		LineWidth: 1.0,
	}
	if cfg.Rasterization != nil {
		rasterizerCreateInfo.DepthClampEnable = vk.Bool32(cfg.Rasterization.DepthClampEnable)
		rasterizerCreateInfo.RasterizerDiscardEnable = vk.Bool32(cfg.Rasterization.RasterizerDiscardEnable)
		rasterizerCreateInfo.PolygonMode = vk.PolygonMode(cfg.Rasterization.PolygonMode)
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(cfg.Rasterization.CullMode)
		rasterizerCreateInfo.FrontFace = vk.FrontFace(cfg.Rasterization.FrontFace)
		rasterizerCreateInfo.DepthBiasEnable = vk.Bool32(cfg.Rasterization.DepthBiasEnable)
		rasterizerCreateInfo.DepthBiasConstantFactor = cfg.Rasterization.DepthBiasConstantFactor
		rasterizerCreateInfo.DepthBiasClamp = cfg.Rasterization.DepthBiasClamp
		rasterizerCreateInfo.DepthBiasSlopeFactor = cfg.Rasterization.DepthBiasSlopeFactor
		rasterizerCreateInfo.LineWidth = cfg.Rasterization.LineWidth
	}
	rasterizerCreateInfo.Deref()

	// Multisampling
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	if cfg.Multisample != nil {
		multisamplingCreateInfo.RasterizationSamples = vk.SampleCountFlagBits(cfg.Multisample.RasterizationSamples)
		multisamplingCreateInfo.SampleShadingEnable = vk.Bool32(cfg.Multisample.SampleShadingEnable)
		multisamplingCreateInfo.MinSampleShading = cfg.Multisample.MinSampleShading
		multisamplingCreateInfo.AlphaToCoverageEnable = vk.Bool32(cfg.Multisample.AlphaToCoverageEnable)
		multisamplingCreateInfo.AlphaToOneEnable = vk.Bool32(cfg.Multisample.AlphaToOneEnable)
	}
	multisamplingCreateInfo.Deref()

	// Depth and stencil testing
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
	}
	if cfg.DepthStencil != nil {
		depthStencil.DepthTestEnable = vk.Bool32(cfg.DepthStencil.DepthTestEnable)
		depthStencil.DepthWriteEnable = vk.Bool32(cfg.DepthStencil.DepthWriteEnable)
		depthStencil.DepthCompareOp = vk.CompareOp(cfg.DepthStencil.DepthCompareOp)
		depthStencil.DepthBoundsTestEnable = vk.Bool32(cfg.DepthStencil.DepthBoundsTestEnable)
		depthStencil.StencilTestEnable = vk.Bool32(cfg.DepthStencil.StencilTestEnable)
		depthStencil.Front = stencilOpState(cfg.DepthStencil.Front)
		depthStencil.Back = stencilOpState(cfg.DepthStencil.Back)
		depthStencil.MinDepthBounds = cfg.DepthStencil.MinDepthBounds
		depthStencil.MaxDepthBounds = cfg.DepthStencil.MaxDepthBounds
	}
	depthStencil.Deref()

	// Color blending
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType: vk.StructureTypePipelineColorBlendStateCreateInfo,
	}
	if cfg.ColorBlend != nil {
		blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(cfg.ColorBlend.Attachments))
		for i, a := range cfg.ColorBlend.Attachments {
			blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
				BlendEnable:         vk.Bool32(a.BlendEnable),
				SrcColorBlendFactor: vk.BlendFactor(a.SrcColorBlendFactor),
				DstColorBlendFactor: vk.BlendFactor(a.DstColorBlendFactor),
				ColorBlendOp:        vk.BlendOp(a.ColorBlendOp),
				SrcAlphaBlendFactor: vk.BlendFactor(a.SrcAlphaBlendFactor),
				DstAlphaBlendFactor: vk.BlendFactor(a.DstAlphaBlendFactor),
				AlphaBlendOp:        vk.BlendOp(a.AlphaBlendOp),
				ColorWriteMask:      vk.ColorComponentFlags(a.ColorWriteMask),
			}
			blendAttachments[i].Deref()
		}
		colorBlendStateCreateInfo.LogicOpEnable = vk.Bool32(cfg.ColorBlend.LogicOpEnable)
		colorBlendStateCreateInfo.LogicOp = vk.LogicOp(cfg.ColorBlend.LogicOp)
		colorBlendStateCreateInfo.AttachmentCount = uint32(len(blendAttachments))
		colorBlendStateCreateInfo.PAttachments = blendAttachments
		colorBlendStateCreateInfo.BlendConstants = cfg.ColorBlend.BlendConstants
	}
	colorBlendStateCreateInfo.Deref()

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		Flags:               vk.PipelineCreateFlags(cfg.Flags),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		Layout:              vb.pipelineLayoutFor(cfg.Layout),
		RenderPass:          vb.renderPassFor(cfg.RenderPass),
		Subpass:             cfg.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	if cfg.Tessellation != nil {
		tessellation := vk.PipelineTessellationStateCreateInfo{
			SType:              vk.StructureTypePipelineTessellationStateCreateInfo,
			PatchControlPoints: cfg.Tessellation.PatchControlPoints,
		}
		tessellation.Deref()
		pipelineCreateInfo.PTessellationState = &tessellation
	}

	if len(cfg.DynamicStates) > 0 {
		dynamicStates := make([]vk.DynamicState, len(cfg.DynamicStates))
		for i, s := range cfg.DynamicStates {
			dynamicStates[i] = vk.DynamicState(s)
		}
		dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
		dynamicStateCreateInfo.Deref()
		pipelineCreateInfo.PDynamicState = &dynamicStateCreateInfo
	}
	pipelineCreateInfo.Deref()

	pPipelines := make([]vk.Pipeline, 1)
	if err := vb.lockPool.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			vb.context.Device.LogicalDevice,
			vb.context.PipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			vb.context.Allocator,
			pPipelines)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(result))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeGraphicsPipeline, pipeline: pPipelines[0]}), nil
}

func (vb *VulkanBackend) CreateComputePipeline(cfg *metadata.ComputePipelineConfig) (metadata.Handle, error) {
	if err := vb.ensureDevice(); err != nil {
		return metadata.NullHandle, err
	}
	stages, err := vb.shaderStages([]metadata.ShaderStageConfig{cfg.Stage})
	if err != nil {
		return metadata.NullHandle, err
	}

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Flags:              vk.PipelineCreateFlags(cfg.Flags),
		Stage:              stages[0],
		Layout:             vb.pipelineLayoutFor(cfg.Layout),
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipelineCreateInfo.Deref()

	pPipelines := make([]vk.Pipeline, 1)
	if err := vb.lockPool.SafeCall(PipelineManagement, func() error {
		result := vk.CreateComputePipelines(
			vb.context.Device.LogicalDevice,
			vb.context.PipelineCache,
			1,
			[]vk.ComputePipelineCreateInfo{pipelineCreateInfo},
			vb.context.Allocator,
			pPipelines)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreateComputePipelines failed with %s", VulkanResultString(result))
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}

	return vb.register(vulkanObject{kind: metadata.ResourceTypeComputePipeline, pipeline: pPipelines[0]}), nil
}

// shaderStages resolves each stage's registry slot into the live module
// handle. The phase barrier has already ordered the slot writes; a null slot
// means the module failed to build, and the create is refused here rather
// than handed to the driver with a dangling module.
func (vb *VulkanBackend) shaderStages(cfgs []metadata.ShaderStageConfig) ([]vk.PipelineShaderStageCreateInfo, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(cfgs))
	for i, s := range cfgs {
		module := vk.NullShaderModule
		if s.Module != nil && *s.Module != metadata.NullHandle {
			if obj, exists := vb.peek(*s.Module); exists {
				module = obj.shaderModule
			}
		}
		if module == vk.NullShaderModule {
			return nil, fmt.Errorf("stage %d references shader module %s which was not built", i, s.ModuleHash)
		}

		name := s.Name
		if name == "" {
			name = "main"
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Flags:  vk.PipelineShaderStageCreateFlags(s.Flags),
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: module,
			PName:  VulkanSafeString(name),
		}
		stages[i].Deref()
	}
	return stages, nil
}

func stencilOpState(s metadata.StencilOpState) vk.StencilOpState {
	state := vk.StencilOpState{
		FailOp:      vk.StencilOp(s.FailOp),
		PassOp:      vk.StencilOp(s.PassOp),
		DepthFailOp: vk.StencilOp(s.DepthFailOp),
		CompareOp:   vk.CompareOp(s.CompareOp),
		CompareMask: s.CompareMask,
		WriteMask:   s.WriteMask,
		Reference:   s.Reference,
	}
	state.Deref()
	return state
}

func (vb *VulkanBackend) setLayoutFor(handle metadata.Handle) vk.DescriptorSetLayout {
	if obj, exists := vb.peek(handle); exists {
		return obj.setLayout
	}
	return vk.NullDescriptorSetLayout
}

func (vb *VulkanBackend) pipelineLayoutFor(handle metadata.Handle) vk.PipelineLayout {
	if obj, exists := vb.peek(handle); exists {
		return obj.pipelineLayout
	}
	return vk.NullPipelineLayout
}

func (vb *VulkanBackend) renderPassFor(handle metadata.Handle) vk.RenderPass {
	if obj, exists := vb.peek(handle); exists {
		return obj.renderPass
	}
	return vk.NullRenderPass
}
