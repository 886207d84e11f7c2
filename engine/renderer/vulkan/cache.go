package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/relic/engine/core"
)

// The on-disk blob starts with the header Vulkan defines for
// vkGetPipelineCacheData: length, version, vendorID, deviceID (all u32
// little-endian) followed by the 16-byte pipelineCacheUUID.
const pipelineCacheHeaderSize = 16 + 16

const pipelineCacheHeaderVersionOne = 1

// ValidateCacheHeader checks a cache blob against the live device's identity.
// A stale or foreign cache is rejected; replay then proceeds with a blank one.
func ValidateCacheHeader(blob []byte, vendorID, deviceID uint32, cacheUUID [16]byte) bool {
	if len(blob) < pipelineCacheHeaderSize {
		core.LogInfo("Pipeline cache header is too small.")
		return false
	}

	if length := binary.LittleEndian.Uint32(blob[0:]); length != pipelineCacheHeaderSize {
		core.LogInfo("Length of pipeline cache header is not as expected.")
		return false
	}

	if version := binary.LittleEndian.Uint32(blob[4:]); version != pipelineCacheHeaderVersionOne {
		core.LogInfo("Version of pipeline cache header is not 1.")
		return false
	}

	if binary.LittleEndian.Uint32(blob[8:]) != vendorID {
		core.LogInfo("Mismatch of vendorID and cache vendorID.")
		return false
	}

	if binary.LittleEndian.Uint32(blob[12:]) != deviceID {
		core.LogInfo("Mismatch of deviceID and cache deviceID.")
		return false
	}

	if [16]byte(blob[16:32]) != cacheUUID {
		core.LogInfo("Mismatch between pipelineCacheUUID.")
		return false
	}

	return true
}

// initPipelineCache creates the device pipeline cache, seeded from diskPath
// when a valid blob is there. Seeding failure falls back to a blank cache; a
// second failure leaves the replay running without one.
func initPipelineCache(context *VulkanContext, diskPath string) {
	var initialData []byte

	if diskPath != "" {
		blob, err := os.ReadFile(diskPath)
		switch {
		case err != nil:
			core.LogInfo("No existing pipeline cache at %s.", diskPath)
		case ValidateCacheHeader(blob, context.Device.Properties.VendorID,
			context.Device.Properties.DeviceID, context.Device.Properties.PipelineCacheUUID):
			initialData = blob
		default:
			core.LogInfo("Failed to validate pipeline cache. Creating a blank one.")
		}
	}

	info := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initialData) > 0 {
		info.InitialDataSize = uint64(len(initialData))
		info.PInitialData = unsafe.Pointer(&initialData[0])
		core.LogInfo("Seeding pipeline cache (UUID %s) with %d bytes.",
			uuid.UUID(context.Device.Properties.PipelineCacheUUID), len(initialData))
	}

	var cache vk.PipelineCache
	if res := vk.CreatePipelineCache(context.Device.LogicalDevice, &info, context.Allocator, &cache); res != vk.Success {
		core.LogError("Failed to create pipeline cache, trying to create a blank one.")
		info.InitialDataSize = 0
		info.PInitialData = nil
		if res := vk.CreatePipelineCache(context.Device.LogicalDevice, &info, context.Allocator, &cache); res != vk.Success {
			core.LogError("Failed to create pipeline cache.")
			cache = vk.NullPipelineCache
		}
	}
	context.PipelineCache = cache
}

// pipelineCacheData queries the opaque cache blob with the usual size/data
// two-call.
func pipelineCacheData(context *VulkanContext) ([]byte, error) {
	if context.PipelineCache == vk.NullPipelineCache {
		return nil, nil
	}

	var size uint64
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, context.PipelineCache, &size, nil); res != vk.Success {
		return nil, fmt.Errorf("vkGetPipelineCacheData failed with %s", VulkanResultString(res))
	}
	if size == 0 {
		return nil, nil
	}

	data := make([]byte, size)
	if res := vk.GetPipelineCacheData(context.Device.LogicalDevice, context.PipelineCache, &size, unsafe.Pointer(&data[0])); res != vk.Success {
		return nil, fmt.Errorf("vkGetPipelineCacheData failed with %s", VulkanResultString(res))
	}
	return data[:size], nil
}
