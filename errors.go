package motorino

import "github.com/cockroachdb/errors"

// Setup-phase failures are categorized by the sentinels below so callers can
// branch with errors.Is without parsing messages. Call sites attach context
// by wrapping the sentinel, or by marking an underlying Vulkan error with it.
var (
	// ErrNoDeviceFound is returned when instance enumeration reports zero
	// Vulkan-capable physical devices.
	ErrNoDeviceFound = errors.New("no vulkan-capable physical device found")

	// ErrIncompleteQueueSupport is returned when at least one of the
	// graphics, transfer, and present roles has no satisfying queue family
	// on the selected device.
	ErrIncompleteQueueSupport = errors.New("device does not expose graphics, transfer, and present queue families")

	// ErrDeviceCreationFailed covers instance, surface, and logical device
	// creation failures.
	ErrDeviceCreationFailed = errors.New("vulkan device creation failed")

	// ErrSwapchainCreationFailed covers any sub-step of a swapchain build:
	// the swapchain handle itself, its image views, or its framebuffers.
	// No partial swapchain state survives a failed build.
	ErrSwapchainCreationFailed = errors.New("swapchain creation failed")

	// ErrNoShadersProvided is returned by CreatePipeline on an empty
	// shader list.
	ErrNoShadersProvided = errors.New("no shaders provided")

	// ErrShaderLoadFailed is returned when shader bytecode cannot be
	// loaded or is not valid SPIR-V.
	ErrShaderLoadFailed = errors.New("shader bytecode load failed")

	// ErrNoSuitableMemoryType is returned when the device exposes no
	// memory type matching both the buffer's type bits and the requested
	// property flags.
	ErrNoSuitableMemoryType = errors.New("no suitable device memory type")

	// ErrSubmissionFailed covers buffer allocation and command submission
	// failures on the upload path.
	ErrSubmissionFailed = errors.New("buffer or command submission failed")
)
