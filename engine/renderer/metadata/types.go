package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

/** @brief A 64-bit content hash identifying one serialized resource. */
type Hash uint64

// ParseHash accepts decimal or 0x-prefixed hex, the forms the CLI takes.
func ParseHash(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource hash %q: %w", s, err)
	}
	return Hash(v), nil
}

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Hashes serialize as hex strings (see MarshalJSON); decimal JSON numbers are
// accepted as well, for hand-written records.
func (h *Hash) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) > 1 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimPrefix(str, "0x")
		v, err := strconv.ParseUint(str, 16, 64)
		if err != nil {
			return fmt.Errorf("invalid hash literal %q: %w", str, err)
		}
		*h = Hash(v)
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid hash literal %s: %w", s, err)
	}
	*h = Hash(v)
	return nil
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

/**
 * @brief An opaque token for a created device object. The zero value is the
 * null handle and marks an uninitialized or destroyed slot.
 */
type Handle uint64

const NullHandle Handle = 0

/** @brief The resource categories a replay archive may contain. */
type ResourceType uint8

const (
	ResourceTypeApplicationInfo ResourceType = iota
	ResourceTypeSampler
	ResourceTypeDescriptorSetLayout
	ResourceTypePipelineLayout
	ResourceTypeRenderPass
	ResourceTypeShaderModule
	ResourceTypeGraphicsPipeline
	ResourceTypeComputePipeline
	ResourceTypeCount
)

// PlaybackOrder is the order the phase driver walks the archive in. Shader
// modules are kicked off right after application info so workers compile them
// while the driver replays the trivial categories; pipelines come last since
// they consume the module handles.
var PlaybackOrder = [...]ResourceType{
	ResourceTypeApplicationInfo,
	ResourceTypeShaderModule,
	ResourceTypeSampler,
	ResourceTypeDescriptorSetLayout,
	ResourceTypePipelineLayout,
	ResourceTypeRenderPass,
	ResourceTypeGraphicsPipeline,
	ResourceTypeComputePipeline,
}

// PlaybackIndex is the position of this category in PlaybackOrder, used to
// order incremental batches the same way the initial replay is ordered.
func (rt ResourceType) PlaybackIndex() int {
	for i, k := range PlaybackOrder {
		if k == rt {
			return i
		}
	}
	return len(PlaybackOrder)
}

/** @brief A reference to one record inside an archive. */
type RecordRef struct {
	Kind ResourceType
	Hash Hash
}

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeApplicationInfo:
		return "application_info"
	case ResourceTypeSampler:
		return "sampler"
	case ResourceTypeDescriptorSetLayout:
		return "descriptor_set_layout"
	case ResourceTypePipelineLayout:
		return "pipeline_layout"
	case ResourceTypeRenderPass:
		return "render_pass"
	case ResourceTypeShaderModule:
		return "shader_module"
	case ResourceTypeGraphicsPipeline:
		return "graphics_pipeline"
	case ResourceTypeComputePipeline:
		return "compute_pipeline"
	}
	return "unknown"
}

// DirName is the archive subdirectory holding records of this category.
func (rt ResourceType) DirName() string {
	switch rt {
	case ResourceTypeApplicationInfo:
		return "application_info"
	case ResourceTypeSampler:
		return "samplers"
	case ResourceTypeDescriptorSetLayout:
		return "descriptor_set_layouts"
	case ResourceTypePipelineLayout:
		return "pipeline_layouts"
	case ResourceTypeRenderPass:
		return "render_passes"
	case ResourceTypeShaderModule:
		return "shader_modules"
	case ResourceTypeGraphicsPipeline:
		return "graphics_pipelines"
	case ResourceTypeComputePipeline:
		return "compute_pipelines"
	}
	return ""
}
