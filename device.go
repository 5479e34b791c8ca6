package motorino

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{khr_swapchain.ExtensionName}

// queueIndices holds the queue family resolved for each role the engine
// needs. A single family may serve more than one role.
type queueIndices struct {
	Graphics *int
	Transfer *int
	Present  *int
}

func (q queueIndices) complete() bool {
	return q.Graphics != nil && q.Transfer != nil && q.Present != nil
}

// unique returns the distinct family indices in role order. The logical
// device requests exactly one queue per distinct family; requesting the
// same family twice is a validation error.
func (q queueIndices) unique() []int {
	var out []int
	for _, idx := range []*int{q.Graphics, q.Transfer, q.Present} {
		if idx == nil {
			continue
		}
		seen := false
		for _, existing := range out {
			if existing == *idx {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, *idx)
		}
	}
	return out
}

// resolveQueueFamilies scans the family list once and picks the first
// family satisfying each role: graphics capability, transfer capability,
// and present support on the target surface as reported by supportsPresent.
// Partial resolution is a failure, not a degraded mode.
func resolveQueueFamilies(
	families []core1_0.QueueFamilyProperties,
	supportsPresent func(familyIndex int) (bool, error),
) (queueIndices, error) {
	var indices queueIndices

	for familyIndex, family := range families {
		if indices.Graphics == nil && (family.QueueFlags&core1_0.QueueGraphics) != 0 {
			index := familyIndex
			indices.Graphics = &index
		}
		if indices.Transfer == nil && (family.QueueFlags&core1_0.QueueTransfer) != 0 {
			index := familyIndex
			indices.Transfer = &index
		}

		if indices.Present == nil {
			supported, err := supportsPresent(familyIndex)
			if err != nil {
				return indices, errors.Wrapf(err, "querying present support for family %d", familyIndex)
			}
			if supported {
				index := familyIndex
				indices.Present = &index
			}
		}

		if indices.complete() {
			break
		}
	}

	if !indices.complete() {
		return indices, ErrIncompleteQueueSupport
	}
	return indices, nil
}

func (e *Engine) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    e.title,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "motorino",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := e.window.VulkanGetInstanceExtensions()
	available, _, err := e.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "enumerating instance extensions"), ErrDeviceCreationFailed)
	}

	for _, ext := range sdlExtensions {
		if _, hasExt := available[ext]; !hasExt {
			return errors.Wrapf(ErrDeviceCreationFailed, "required instance extension %s is unavailable", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if e.enableValidation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	if _, supported := available[khr_portability_enumeration.ExtensionName]; supported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if e.enableValidation {
		layers, _, err := e.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Mark(errors.Wrap(err, "enumerating instance layers"), ErrDeviceCreationFailed)
		}
		if _, hasValidation := layers[validationLayerName]; !hasValidation {
			return errors.Wrapf(ErrDeviceCreationFailed, "validation layer %s is not installed", validationLayerName)
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayerName)

		// Covers instance creation itself, before the messenger exists.
		instanceOptions.Next = e.debugMessengerOptions()
	}

	e.instanceDriver, _, err = e.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating instance"), ErrDeviceCreationFailed)
	}

	e.log.Info("vulkan instance created", "validation", e.enableValidation)
	return nil
}

func (e *Engine) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    e.logValidationMessage,
	}
}

func (e *Engine) logValidationMessage(
	msgType ext_debug_utils.DebugUtilsMessageTypeFlags,
	severity ext_debug_utils.DebugUtilsMessageSeverityFlags,
	data *ext_debug_utils.DebugUtilsMessengerCallbackData,
) bool {
	if (severity & ext_debug_utils.SeverityError) != 0 {
		e.log.Error("validation layer", "type", msgType, "message", data.Message)
	} else {
		e.log.Warn("validation layer", "type", msgType, "message", data.Message)
	}
	return false
}

func (e *Engine) setupDebugMessenger() error {
	if !e.enableValidation {
		return nil
	}

	var err error
	e.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(e.instanceDriver)
	e.debugMessenger, _, err = e.debugDriver.CreateDebugUtilsMessenger(nil, e.debugMessengerOptions())
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating debug messenger"), ErrDeviceCreationFailed)
	}
	return nil
}

func (e *Engine) createSurface() error {
	e.surfaceDriver = khr_surface.CreateExtensionDriverFromCoreDriver(e.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(e.instanceDriver.Instance(), e.surfaceDriver, e.window)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating surface"), ErrDeviceCreationFailed)
	}

	e.surface = surface
	return nil
}

// pickPhysicalDevice selects the first enumerated device. No scoring is
// applied; incomplete queue support on that device surfaces later as a
// startup failure rather than falling through to another device.
func (e *Engine) pickPhysicalDevice() error {
	physicalDevices, _, err := e.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "enumerating physical devices"), ErrDeviceCreationFailed)
	}
	if len(physicalDevices) == 0 {
		return ErrNoDeviceFound
	}

	e.physicalDevice = physicalDevices[0]

	e.gpuProperties, err = e.instanceDriver.GetPhysicalDeviceProperties(e.physicalDevice)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "querying device properties"), ErrDeviceCreationFailed)
	}

	e.log.Info("physical device selected", "name", e.gpuProperties.DeviceName)
	return nil
}

func (e *Engine) createLogicalDevice() error {
	families := e.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(e.physicalDevice)

	indices, err := resolveQueueFamilies(families, func(familyIndex int) (bool, error) {
		supported, _, err := e.surfaceDriver.GetPhysicalDeviceSurfaceSupport(e.surface, e.physicalDevice, familyIndex)
		return supported, err
	})
	if err != nil {
		return err
	}
	e.queues = indices

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	for _, queueFamily := range indices.unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string{}, deviceExtensions...)

	// Keeps the device compatible with Vulkan portability implementations
	// (MoltenVK and friends).
	available, _, err := e.instanceDriver.EnumerateDeviceExtensionProperties(e.physicalDevice)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "enumerating device extensions"), ErrDeviceCreationFailed)
	}
	if _, supported := available[khr_portability_subset.ExtensionName]; supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	e.deviceDriver, _, err = e.instanceDriver.CreateDevice(e.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating logical device"), ErrDeviceCreationFailed)
	}

	e.graphicsQueue = e.deviceDriver.GetQueue(*indices.Graphics, 0)
	e.transferQueue = e.deviceDriver.GetQueue(*indices.Transfer, 0)
	e.presentQueue = e.deviceDriver.GetQueue(*indices.Present, 0)

	e.log.Info("logical device created",
		"graphicsFamily", *indices.Graphics,
		"transferFamily", *indices.Transfer,
		"presentFamily", *indices.Present)
	return nil
}
