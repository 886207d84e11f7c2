package metadata

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

/**
 * @brief Device-initialization hints recorded by the capturing layer. Consumed
 * exactly once per archive, before any other record.
 */
type ApplicationInfo struct {
	APIVersion         uint32 `json:"apiVersion"`
	ApplicationVersion uint32 `json:"applicationVersion"`
	EngineVersion      uint32 `json:"engineVersion"`
	ApplicationName    string `json:"applicationName,omitempty"`
	EngineName         string `json:"engineName,omitempty"`
}

/**
 * @brief The physical-device features the captured application enabled.
 * Serialized as raw VkBool32 values.
 */
type DeviceFeatures struct {
	RobustBufferAccess       uint32 `json:"robustBufferAccess"`
	FullDrawIndexUint32      uint32 `json:"fullDrawIndexUint32"`
	ImageCubeArray           uint32 `json:"imageCubeArray"`
	IndependentBlend         uint32 `json:"independentBlend"`
	GeometryShader           uint32 `json:"geometryShader"`
	TessellationShader       uint32 `json:"tessellationShader"`
	SamplerAnisotropy        uint32 `json:"samplerAnisotropy"`
	FragmentStoresAndAtomics uint32 `json:"fragmentStoresAndAtomics"`
	ShaderInt64              uint32 `json:"shaderInt64"`
	ShaderInt16              uint32 `json:"shaderInt16"`
}

// Descriptor structs below carry raw Vulkan enum and flag values as the
// capturing layer serialized them. No semantic validation happens on replay.

/** @brief Creation state for a sampler. */
type SamplerConfig struct {
	Flags                   uint32  `json:"flags"`
	MagFilter               int32   `json:"magFilter"`
	MinFilter               int32   `json:"minFilter"`
	MipmapMode              int32   `json:"mipmapMode"`
	AddressModeU            int32   `json:"addressModeU"`
	AddressModeV            int32   `json:"addressModeV"`
	AddressModeW            int32   `json:"addressModeW"`
	MipLodBias              float32 `json:"mipLodBias"`
	AnisotropyEnable        uint32  `json:"anisotropyEnable"`
	MaxAnisotropy           float32 `json:"maxAnisotropy"`
	CompareEnable           uint32  `json:"compareEnable"`
	CompareOp               int32   `json:"compareOp"`
	MinLod                  float32 `json:"minLod"`
	MaxLod                  float32 `json:"maxLod"`
	BorderColor             int32   `json:"borderColor"`
	UnnormalizedCoordinates uint32  `json:"unnormalizedCoordinates"`
}

type DescriptorSetLayoutBinding struct {
	Binding         uint32 `json:"binding"`
	DescriptorType  int32  `json:"descriptorType"`
	DescriptorCount uint32 `json:"descriptorCount"`
	StageFlags      uint32 `json:"stageFlags"`
}

/** @brief Creation state for a descriptor-set layout. */
type DescriptorSetLayoutConfig struct {
	Flags    uint32                       `json:"flags"`
	Bindings []DescriptorSetLayoutBinding `json:"bindings"`
}

type PushConstantRange struct {
	StageFlags uint32 `json:"stageFlags"`
	Offset     uint32 `json:"offset"`
	Size       uint32 `json:"size"`
}

/**
 * @brief Creation state for a pipeline layout. SetLayoutHashes reference
 * descriptor-set layouts replayed earlier in the same archive; the
 * deserializer resolves them into SetLayouts before the facade is called.
 */
type PipelineLayoutConfig struct {
	Flags              uint32              `json:"flags"`
	SetLayoutHashes    []Hash              `json:"setLayouts"`
	PushConstantRanges []PushConstantRange `json:"pushConstantRanges"`

	// Resolved by the deserializer, never serialized.
	SetLayouts []Handle `json:"-"`
}

type AttachmentDescription struct {
	Flags          uint32 `json:"flags"`
	Format         int32  `json:"format"`
	Samples        int32  `json:"samples"`
	LoadOp         int32  `json:"loadOp"`
	StoreOp        int32  `json:"storeOp"`
	StencilLoadOp  int32  `json:"stencilLoadOp"`
	StencilStoreOp int32  `json:"stencilStoreOp"`
	InitialLayout  int32  `json:"initialLayout"`
	FinalLayout    int32  `json:"finalLayout"`
}

type AttachmentReference struct {
	Attachment uint32 `json:"attachment"`
	Layout     int32  `json:"layout"`
}

type SubpassDescription struct {
	PipelineBindPoint      int32                 `json:"pipelineBindPoint"`
	InputAttachments       []AttachmentReference `json:"inputAttachments"`
	ColorAttachments       []AttachmentReference `json:"colorAttachments"`
	ResolveAttachments     []AttachmentReference `json:"resolveAttachments"`
	DepthStencilAttachment *AttachmentReference  `json:"depthStencilAttachment"`
	PreserveAttachments    []uint32              `json:"preserveAttachments"`
}

type SubpassDependency struct {
	SrcSubpass      uint32 `json:"srcSubpass"`
	DstSubpass      uint32 `json:"dstSubpass"`
	SrcStageMask    uint32 `json:"srcStageMask"`
	DstStageMask    uint32 `json:"dstStageMask"`
	SrcAccessMask   uint32 `json:"srcAccessMask"`
	DstAccessMask   uint32 `json:"dstAccessMask"`
	DependencyFlags uint32 `json:"dependencyFlags"`
}

/** @brief Creation state for a render pass. */
type RenderPassConfig struct {
	Flags        uint32                  `json:"flags"`
	Attachments  []AttachmentDescription `json:"attachments"`
	Subpasses    []SubpassDescription    `json:"subpasses"`
	Dependencies []SubpassDependency     `json:"dependencies"`
}

/**
 * @brief SPIR-V code, serialized as a base64 little-endian byte string.
 */
type SPIRV []uint32

func (s *SPIRV) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid SPIR-V payload: %w", err)
	}
	if len(raw)%4 != 0 {
		return fmt.Errorf("SPIR-V payload length %d is not a multiple of 4", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	*s = words
	return nil
}

func (s SPIRV) MarshalJSON() ([]byte, error) {
	raw := make([]byte, len(s)*4)
	for i, w := range s {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(raw))
}

/** @brief Creation state for a shader module. */
type ShaderModuleConfig struct {
	Flags uint32 `json:"flags"`
	Code  SPIRV  `json:"code"`
}

/**
 * @brief One pipeline shader stage. ModuleHash references a shader module
 * replayed concurrently by the worker pool; Module is the stable registry
 * slot the worker publishes into, read by the backend at create time. The
 * phase barrier guarantees the slot is populated by then.
 */
type ShaderStageConfig struct {
	Flags      uint32 `json:"flags"`
	Stage      uint32 `json:"stage"`
	ModuleHash Hash   `json:"module"`
	Name       string `json:"name"`

	Module *Handle `json:"-"`
}

type VertexInputBinding struct {
	Binding   uint32 `json:"binding"`
	Stride    uint32 `json:"stride"`
	InputRate int32  `json:"inputRate"`
}

type VertexInputAttribute struct {
	Location uint32 `json:"location"`
	Binding  uint32 `json:"binding"`
	Format   int32  `json:"format"`
	Offset   uint32 `json:"offset"`
}

type VertexInputState struct {
	Bindings   []VertexInputBinding   `json:"bindings"`
	Attributes []VertexInputAttribute `json:"attributes"`
}

type InputAssemblyState struct {
	Topology               int32  `json:"topology"`
	PrimitiveRestartEnable uint32 `json:"primitiveRestartEnable"`
}

type TessellationState struct {
	PatchControlPoints uint32 `json:"patchControlPoints"`
}

// Viewports and scissors are dynamic in practice; only the counts are
// captured.
type ViewportState struct {
	ViewportCount uint32 `json:"viewportCount"`
	ScissorCount  uint32 `json:"scissorCount"`
}

type RasterizationState struct {
	DepthClampEnable        uint32  `json:"depthClampEnable"`
	RasterizerDiscardEnable uint32  `json:"rasterizerDiscardEnable"`
	PolygonMode             int32   `json:"polygonMode"`
	CullMode                uint32  `json:"cullMode"`
	FrontFace               int32   `json:"frontFace"`
	DepthBiasEnable         uint32  `json:"depthBiasEnable"`
	DepthBiasConstantFactor float32 `json:"depthBiasConstantFactor"`
	DepthBiasClamp          float32 `json:"depthBiasClamp"`
	DepthBiasSlopeFactor    float32 `json:"depthBiasSlopeFactor"`
	LineWidth               float32 `json:"lineWidth"`
}

type MultisampleState struct {
	RasterizationSamples  int32   `json:"rasterizationSamples"`
	SampleShadingEnable   uint32  `json:"sampleShadingEnable"`
	MinSampleShading      float32 `json:"minSampleShading"`
	AlphaToCoverageEnable uint32  `json:"alphaToCoverageEnable"`
	AlphaToOneEnable      uint32  `json:"alphaToOneEnable"`
}

type StencilOpState struct {
	FailOp      int32  `json:"failOp"`
	PassOp      int32  `json:"passOp"`
	DepthFailOp int32  `json:"depthFailOp"`
	CompareOp   int32  `json:"compareOp"`
	CompareMask uint32 `json:"compareMask"`
	WriteMask   uint32 `json:"writeMask"`
	Reference   uint32 `json:"reference"`
}

type DepthStencilState struct {
	DepthTestEnable       uint32         `json:"depthTestEnable"`
	DepthWriteEnable      uint32         `json:"depthWriteEnable"`
	DepthCompareOp        int32          `json:"depthCompareOp"`
	DepthBoundsTestEnable uint32         `json:"depthBoundsTestEnable"`
	StencilTestEnable     uint32         `json:"stencilTestEnable"`
	Front                 StencilOpState `json:"front"`
	Back                  StencilOpState `json:"back"`
	MinDepthBounds        float32        `json:"minDepthBounds"`
	MaxDepthBounds        float32        `json:"maxDepthBounds"`
}

type ColorBlendAttachment struct {
	BlendEnable         uint32 `json:"blendEnable"`
	SrcColorBlendFactor int32  `json:"srcColorBlendFactor"`
	DstColorBlendFactor int32  `json:"dstColorBlendFactor"`
	ColorBlendOp        int32  `json:"colorBlendOp"`
	SrcAlphaBlendFactor int32  `json:"srcAlphaBlendFactor"`
	DstAlphaBlendFactor int32  `json:"dstAlphaBlendFactor"`
	AlphaBlendOp        int32  `json:"alphaBlendOp"`
	ColorWriteMask      uint32 `json:"colorWriteMask"`
}

type ColorBlendState struct {
	LogicOpEnable  uint32                 `json:"logicOpEnable"`
	LogicOp        int32                  `json:"logicOp"`
	Attachments    []ColorBlendAttachment `json:"attachments"`
	BlendConstants [4]float32             `json:"blendConstants"`
}

/**
 * @brief Creation state for a graphics pipeline. LayoutHash and
 * RenderPassHash reference trivial objects that already exist at parse time
 * and are resolved by value; stage modules resolve to registry slots.
 */
type GraphicsPipelineConfig struct {
	Flags          uint32              `json:"flags"`
	Stages         []ShaderStageConfig `json:"stages"`
	VertexInput    *VertexInputState   `json:"vertexInput"`
	InputAssembly  *InputAssemblyState `json:"inputAssembly"`
	Tessellation   *TessellationState  `json:"tessellation"`
	Viewport       *ViewportState      `json:"viewport"`
	Rasterization  *RasterizationState `json:"rasterization"`
	Multisample    *MultisampleState   `json:"multisample"`
	DepthStencil   *DepthStencilState  `json:"depthStencil"`
	ColorBlend     *ColorBlendState    `json:"colorBlend"`
	DynamicStates  []int32             `json:"dynamicStates"`
	LayoutHash     Hash                `json:"layout"`
	RenderPassHash Hash                `json:"renderPass"`
	Subpass        uint32              `json:"subpass"`

	Layout     Handle `json:"-"`
	RenderPass Handle `json:"-"`
}

/** @brief Creation state for a compute pipeline. */
type ComputePipelineConfig struct {
	Flags      uint32            `json:"flags"`
	Stage      ShaderStageConfig `json:"stage"`
	LayoutHash Hash              `json:"layout"`

	Layout Handle `json:"-"`
}
