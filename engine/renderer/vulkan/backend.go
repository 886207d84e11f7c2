package vulkan

import (
	"errors"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/relic/engine/core"
	"github.com/spaghettifunk/relic/engine/renderer/metadata"
)

/** @brief Device-level options carried from the CLI. */
type Options struct {
	DeviceIndex             int
	EnableValidation        bool
	PipelineCache           bool
	OnDiskPipelineCachePath string
}

/**
 * @brief The production replay backend. Owns the instance, the device, the
 * pipeline cache and a table mapping the opaque handles handed to the
 * scheduler back to the Vulkan objects they stand for. Creates run
 * concurrently from the worker pool; the lock pool serializes per object
 * class, the table has its own mutex.
 */
type VulkanBackend struct {
	opts     Options
	context  *VulkanContext
	lockPool *VulkanLockPool

	mu         sync.Mutex
	nextHandle metadata.Handle
	objects    map[metadata.Handle]vulkanObject

	initialized bool
}

// vulkanObject holds exactly one live Vulkan handle, matching kind.
type vulkanObject struct {
	kind           metadata.ResourceType
	sampler        vk.Sampler
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	renderPass     vk.RenderPass
	shaderModule   vk.ShaderModule
	pipeline       vk.Pipeline
}

func New(opts Options) *VulkanBackend {
	return &VulkanBackend{
		opts: opts,
		context: &VulkanContext{
			Allocator: nil,
		},
		lockPool: NewVulkanLockPool(),
		objects:  make(map[metadata.Handle]vulkanObject),
	}
}

// Initialize brings up the instance and the device using the archive's
// application info. Called once, from the driver goroutine, before any
// create reaches the backend.
func (vb *VulkanBackend) Initialize(info *metadata.ApplicationInfo, features *metadata.DeviceFeatures) error {
	if vb.initialized {
		return nil
	}

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to locate the Vulkan loader: %s", err)
		return err
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString("relic-replay"),
		PEngineName:        VulkanSafeString("Relic"),
	}
	if info != nil {
		if info.APIVersion != 0 {
			appInfo.ApiVersion = info.APIVersion
		}
		appInfo.ApplicationVersion = info.ApplicationVersion
		appInfo.EngineVersion = info.EngineVersion
		if info.ApplicationName != "" {
			appInfo.PApplicationName = VulkanSafeString(info.ApplicationName)
		}
		if info.EngineName != "" {
			appInfo.PEngineName = VulkanSafeString(info.EngineName)
		}
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Validation layers.
	requiredValidationLayerNames := []string{}
	if vb.opts.EnableValidation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s", VulkanResultString(res))
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s", VulkanResultString(res))
		}

		for i := range requiredValidationLayerNames {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				layerEnd := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if requiredValidationLayerNames[i] == string(availableLayers[j].LayerName[:layerEnd]) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("required validation layer is missing: %s", requiredValidationLayerNames[i])
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed with %s", VulkanResultString(res))
	}
	vk.InitInstance(vb.context.Instance)

	if err := SelectPhysicalDevice(vb.context, vb.opts.DeviceIndex); err != nil {
		return err
	}
	if err := DeviceCreate(vb.context, deviceFeaturesFromConfig(features)); err != nil {
		return err
	}

	if vb.opts.PipelineCache {
		initPipelineCache(vb.context, vb.opts.OnDiskPipelineCachePath)
	}

	vb.initialized = true
	return nil
}

// deviceFeaturesFromConfig maps the captured feature set onto the request we
// hand vkCreateDevice. Unknown features stay off; the replay does not execute
// any shaders, it only compiles them.
func deviceFeaturesFromConfig(features *metadata.DeviceFeatures) vk.PhysicalDeviceFeatures {
	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if features == nil {
		return deviceFeatures
	}
	deviceFeatures.RobustBufferAccess = vk.Bool32(features.RobustBufferAccess)
	deviceFeatures.FullDrawIndexUint32 = vk.Bool32(features.FullDrawIndexUint32)
	deviceFeatures.ImageCubeArray = vk.Bool32(features.ImageCubeArray)
	deviceFeatures.IndependentBlend = vk.Bool32(features.IndependentBlend)
	deviceFeatures.GeometryShader = vk.Bool32(features.GeometryShader)
	deviceFeatures.TessellationShader = vk.Bool32(features.TessellationShader)
	deviceFeatures.SamplerAnisotropy = vk.Bool32(features.SamplerAnisotropy)
	deviceFeatures.FragmentStoresAndAtomics = vk.Bool32(features.FragmentStoresAndAtomics)
	deviceFeatures.ShaderInt64 = vk.Bool32(features.ShaderInt64)
	deviceFeatures.ShaderInt16 = vk.Bool32(features.ShaderInt16)
	return deviceFeatures
}

var errDeviceNotReady = errors.New("device has not been initialized")

// ensureDevice rejects creates that arrive before the archive's
// application-info record has initialized the device.
func (vb *VulkanBackend) ensureDevice() error {
	if !vb.initialized {
		return errDeviceNotReady
	}
	return nil
}

func (vb *VulkanBackend) register(obj vulkanObject) metadata.Handle {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	vb.nextHandle++
	handle := vb.nextHandle
	vb.objects[handle] = obj
	return handle
}

func (vb *VulkanBackend) take(handle metadata.Handle) (vulkanObject, bool) {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	obj, exists := vb.objects[handle]
	if exists {
		delete(vb.objects, handle)
	}
	return obj, exists
}

func (vb *VulkanBackend) peek(handle metadata.Handle) (vulkanObject, bool) {
	vb.mu.Lock()
	defer vb.mu.Unlock()

	obj, exists := vb.objects[handle]
	return obj, exists
}

// Destroy releases the Vulkan object behind one scheduler handle.
func (vb *VulkanBackend) Destroy(kind metadata.ResourceType, handle metadata.Handle) {
	obj, exists := vb.take(handle)
	if !exists {
		return
	}

	device := vb.context.Device.LogicalDevice
	switch obj.kind {
	case metadata.ResourceTypeSampler:
		vb.lockPool.SafeCall(SamplerManagement, func() error {
			vk.DestroySampler(device, obj.sampler, vb.context.Allocator)
			return nil
		})
	case metadata.ResourceTypeDescriptorSetLayout:
		vb.lockPool.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorSetLayout(device, obj.setLayout, vb.context.Allocator)
			return nil
		})
	case metadata.ResourceTypePipelineLayout:
		vb.lockPool.SafeCall(LayoutManagement, func() error {
			vk.DestroyPipelineLayout(device, obj.pipelineLayout, vb.context.Allocator)
			return nil
		})
	case metadata.ResourceTypeRenderPass:
		vb.lockPool.SafeCall(RenderpassManagement, func() error {
			vk.DestroyRenderPass(device, obj.renderPass, vb.context.Allocator)
			return nil
		})
	case metadata.ResourceTypeShaderModule:
		vb.lockPool.SafeCall(ShaderManagement, func() error {
			vk.DestroyShaderModule(device, obj.shaderModule, vb.context.Allocator)
			return nil
		})
	case metadata.ResourceTypeGraphicsPipeline, metadata.ResourceTypeComputePipeline:
		vb.lockPool.SafeCall(PipelineManagement, func() error {
			vk.DestroyPipeline(device, obj.pipeline, vb.context.Allocator)
			return nil
		})
	}
}

func (vb *VulkanBackend) CacheData() ([]byte, error) {
	if !vb.initialized {
		return nil, nil
	}
	return pipelineCacheData(vb.context)
}

func (vb *VulkanBackend) Shutdown() error {
	if !vb.initialized {
		return nil
	}

	if vb.context.PipelineCache != vk.NullPipelineCache {
		vk.DestroyPipelineCache(vb.context.Device.LogicalDevice, vb.context.PipelineCache, vb.context.Allocator)
		vb.context.PipelineCache = vk.NullPipelineCache
	}

	DeviceDestroy(vb.context)

	if vb.context.Instance != nil {
		vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
		vb.context.Instance = nil
	}

	vb.initialized = false
	return nil
}
