package motorino

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// swapchainState is the owning aggregate for everything that must be
// rebuilt together on resize: the swapchain handle, its images, one view
// per image, and one framebuffer per view. buildSwapchain either produces
// a fully formed set or nothing; the frame loop never observes a partial
// rebuild.
type swapchainState struct {
	extent       core1_0.Extent2D
	swapchain    khr_swapchain.Swapchain
	images       []core1_0.Image
	views        []core1_0.ImageView
	framebuffers []core1_0.Framebuffer
}

// chooseImageCount requests one image more than the driver minimum so
// acquisition rarely blocks, clamped when the driver reports a finite max.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

// chooseSurfaceFormat prefers BGRA8 sRGB and otherwise takes whatever the
// surface lists first.
func chooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}
	return available[0]
}

// choosePresentMode prefers mailbox for low latency and falls back to FIFO,
// the only mode the standard guarantees.
func choosePresentMode(available []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range available {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}
	return khr_surface.PresentModeFIFO
}

// chooseExtent honors the surface's fixed extent when it reports one and
// otherwise clamps the drawable size into the supported range.
func chooseExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := drawableWidth
	height := drawableHeight

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return core1_0.Extent2D{Width: width, Height: height}
}

// buildSwapchain creates a complete swapchainState against the current
// surface. Any sub-step failure tears down whatever was created and
// surfaces as ErrSwapchainCreationFailed.
func (e *Engine) buildSwapchain() (*swapchainState, error) {
	capabilities, _, err := e.surfaceDriver.GetPhysicalDeviceSurfaceCapabilities(e.surface, e.physicalDevice)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "querying surface capabilities"), ErrSwapchainCreationFailed)
	}

	presentModes, _, err := e.surfaceDriver.GetPhysicalDeviceSurfacePresentModes(e.surface, e.physicalDevice)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "querying present modes"), ErrSwapchainCreationFailed)
	}

	drawableWidth, drawableHeight := e.window.VulkanGetDrawableSize()
	extent := chooseExtent(capabilities, int(drawableWidth), int(drawableHeight))

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if *e.queues.Graphics != *e.queues.Present {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = e.queues.unique()
	}

	state := &swapchainState{extent: extent}

	state.swapchain, _, err = e.swapchainDriver.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: e.surface,

		MinImageCount:    chooseImageCount(capabilities),
		ImageFormat:      e.surfaceFormat.Format,
		ImageColorSpace:  e.surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    choosePresentMode(presentModes),
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "creating swapchain"), ErrSwapchainCreationFailed)
	}

	state.images, _, err = e.swapchainDriver.GetSwapchainImages(state.swapchain)
	if err != nil {
		state.teardown(e.deviceDriver, e.swapchainDriver)
		return nil, errors.Mark(errors.Wrap(err, "fetching swapchain images"), ErrSwapchainCreationFailed)
	}

	for _, image := range state.images {
		view, _, err := e.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   e.surfaceFormat.Format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			state.teardown(e.deviceDriver, e.swapchainDriver)
			return nil, errors.Mark(errors.Wrap(err, "creating image view"), ErrSwapchainCreationFailed)
		}
		state.views = append(state.views, view)
	}

	for _, view := range state.views {
		framebuffer, _, err := e.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  e.renderPass,
			Layers:      1,
			Attachments: []core1_0.ImageView{view},
			Width:       extent.Width,
			Height:      extent.Height,
		})
		if err != nil {
			state.teardown(e.deviceDriver, e.swapchainDriver)
			return nil, errors.Mark(errors.Wrap(err, "creating framebuffer"), ErrSwapchainCreationFailed)
		}
		state.framebuffers = append(state.framebuffers, framebuffer)
	}

	e.log.Info("swapchain built",
		"width", extent.Width,
		"height", extent.Height,
		"images", len(state.images))
	return state, nil
}

// teardown destroys the set in reverse creation order: framebuffers, then
// views, then the swapchain they reference. Safe on a partially built state.
func (s *swapchainState) teardown(device core1_0.CoreDeviceDriver, swapchainDriver khr_swapchain.ExtensionDriver) {
	for _, framebuffer := range s.framebuffers {
		device.DestroyFramebuffer(framebuffer, nil)
	}
	s.framebuffers = nil

	for _, view := range s.views {
		device.DestroyImageView(view, nil)
	}
	s.views = nil
	s.images = nil

	if s.swapchain.Initialized() {
		swapchainDriver.DestroySwapchain(s.swapchain, nil)
		s.swapchain = khr_swapchain.Swapchain{}
	}
}

// recreateSwapchain rebuilds the swapchain set after a resize or an
// out-of-date acquisition. A zero-area drawable (minimized window) blocks
// here until a real size shows up; rebuilding against a degenerate extent
// is never attempted. The device-wide wait guarantees no in-flight command
// buffer still references the old framebuffers.
func (e *Engine) recreateSwapchain() error {
	width, height := e.window.VulkanGetDrawableSize()
	for width == 0 || height == 0 {
		sdl.WaitEvent()
		width, height = e.window.VulkanGetDrawableSize()
	}

	if _, err := e.deviceDriver.DeviceWaitIdle(); err != nil {
		return errors.Mark(errors.Wrap(err, "waiting for device idle"), ErrSwapchainCreationFailed)
	}

	e.swapchain.teardown(e.deviceDriver, e.swapchainDriver)

	state, err := e.buildSwapchain()
	if err != nil {
		return err
	}
	e.swapchain = state
	return nil
}

// createRenderPass builds the single color-only pass every frame renders
// through. The render pass depends only on the surface format, so it
// survives swapchain rebuilds.
func (e *Engine) createRenderPass() error {
	renderPass, _, err := e.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         e.surfaceFormat.Format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating render pass"), ErrSwapchainCreationFailed)
	}

	e.renderPass = renderPass
	return nil
}
