package motorino

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// maxFramesInFlight bounds how many frames may be recorded on the CPU
// before the GPU confirms completion of the oldest one.
const maxFramesInFlight = 2

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger installs a logger for engine diagnostics. The default discards
// everything. Validation-layer messages, when enabled, go to the same sink.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithValidation enables the Khronos validation layer and the debug
// messenger. Initialization fails if the layer is not installed.
func WithValidation() Option {
	return func(e *Engine) { e.enableValidation = true }
}

// WithPipelineCachePath enables an on-disk pipeline cache. The file is
// created after the first successful pipeline build and validated against
// the selected device on subsequent runs.
func WithPipelineCachePath(path string) Option {
	return func(e *Engine) { e.cachePath = path }
}

// Engine owns one presentation surface and the Vulkan resources rendering
// into it. It is not safe for concurrent use; all methods must be called
// from the thread that created it.
type Engine struct {
	width  int
	height int
	title  string

	log              *slog.Logger
	enableValidation bool
	cachePath        string

	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceDriver khr_surface.ExtensionDriver
	surface       khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	gpuProperties  *core1_0.PhysicalDeviceProperties

	queues        queueIndices
	graphicsQueue core1_0.Queue
	transferQueue core1_0.Queue
	presentQueue  core1_0.Queue

	swapchainDriver khr_swapchain.ExtensionDriver
	surfaceFormat   khr_surface.SurfaceFormat
	renderPass      core1_0.RenderPass
	swapchain       *swapchainState

	pipelineLayout   core1_0.PipelineLayout
	graphicsPipeline core1_0.Pipeline
	pipelineBuilt    bool

	graphicsPool core1_0.CommandPool
	transferPool core1_0.CommandPool

	frames       [maxFramesInFlight]frameSlot
	currentFrame int

	geometry *geometryBuffer

	initialized bool
	closed      bool
}

// New creates the presentation window and loads the Vulkan entry point.
// The requested size is authoritative until the user resizes the window.
func New(width, height int, title string, opts ...Option) (*Engine, error) {
	e := &Engine{
		width:  width,
		height: height,
		title:  title,
		log:    newNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initializing sdl")
	}

	window, err := sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "creating window")
	}
	e.window = window

	e.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, errors.Wrap(err, "loading vulkan entry point")
	}

	e.log.Info("window created", "width", width, "height", height, "title", title)
	return e, nil
}

// InitVulkan performs all one-time setup: instance, surface, device and
// queues, swapchain with its render pass, command pools, and the per-frame
// synchronization slots. It must be called exactly once, before
// CreatePipeline, SubmitVertexData, or Run.
func (e *Engine) InitVulkan() error {
	if e.initialized {
		return errors.New("InitVulkan called twice")
	}

	if err := e.createInstance(); err != nil {
		return err
	}
	if err := e.setupDebugMessenger(); err != nil {
		return err
	}
	if err := e.createSurface(); err != nil {
		return err
	}
	if err := e.pickPhysicalDevice(); err != nil {
		return err
	}
	if err := e.createLogicalDevice(); err != nil {
		return err
	}

	e.swapchainDriver = khr_swapchain.CreateExtensionDriverFromCoreDriver(e.deviceDriver)

	formats, _, err := e.surfaceDriver.GetPhysicalDeviceSurfaceFormats(e.surface, e.physicalDevice)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "querying surface formats"), ErrSwapchainCreationFailed)
	}
	e.surfaceFormat = chooseSurfaceFormat(formats)

	if err := e.createRenderPass(); err != nil {
		return err
	}

	state, err := e.buildSwapchain()
	if err != nil {
		return err
	}
	e.swapchain = state

	if err := e.createCommandPools(); err != nil {
		return err
	}
	if err := e.createFrameSlots(); err != nil {
		return err
	}

	e.initialized = true
	return nil
}

// Run pumps window events and drives the frame loop until the window is
// closed. Steady-state frame errors are logged and the loop continues;
// out-of-date swapchains are rebuilt transparently. On exit it waits for
// all GPU work to finish so teardown observes no in-flight frames.
func (e *Engine) Run() {
	if !e.initialized {
		e.log.Error("Run called before InitVulkan")
		return
	}

	rendering := true
	frames := 0
	lastReport := hrtime.Now()

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch ev.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_SIZE_CHANGED:
					w, h := e.window.GetSize()
					if w > 0 && h > 0 {
						rendering = true
						if err := e.recreateSwapchain(); err != nil {
							e.log.Warn("swapchain rebuild failed", "error", err)
						}
					} else {
						rendering = false
					}
				}
			}
		}

		if !rendering {
			continue
		}

		if err := e.drawFrame(); err != nil {
			e.log.Warn("frame skipped", "error", err)
		}
		frames++

		if now := hrtime.Now(); now-lastReport >= time.Second {
			e.log.Debug("frame rate", "fps", float64(frames)/(now-lastReport).Seconds())
			frames = 0
			lastReport = now
		}
	}

	if e.deviceDriver != nil {
		_, _ = e.deviceDriver.DeviceWaitIdle()
	}
}

// Close releases every resource in reverse creation order. It is safe to
// call on a partially initialized engine and is idempotent. Destruction is
// unconditional: nothing on this path reports errors.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true

	if e.deviceDriver != nil {
		_, _ = e.deviceDriver.DeviceWaitIdle()
	}

	e.destroyFrameSlots()

	if e.transferPool.Initialized() {
		e.deviceDriver.DestroyCommandPool(e.transferPool, nil)
		e.transferPool = core1_0.CommandPool{}
	}
	if e.graphicsPool.Initialized() {
		e.deviceDriver.DestroyCommandPool(e.graphicsPool, nil)
		e.graphicsPool = core1_0.CommandPool{}
	}

	e.releaseGeometry()

	if e.graphicsPipeline.Initialized() {
		e.deviceDriver.DestroyPipeline(e.graphicsPipeline, nil)
		e.graphicsPipeline = core1_0.Pipeline{}
	}
	if e.pipelineLayout.Initialized() {
		e.deviceDriver.DestroyPipelineLayout(e.pipelineLayout, nil)
		e.pipelineLayout = core1_0.PipelineLayout{}
	}

	if e.swapchain != nil {
		e.swapchain.teardown(e.deviceDriver, e.swapchainDriver)
		e.swapchain = nil
	}
	if e.renderPass.Initialized() {
		e.deviceDriver.DestroyRenderPass(e.renderPass, nil)
		e.renderPass = core1_0.RenderPass{}
	}

	if e.deviceDriver != nil {
		e.deviceDriver.DestroyDevice(nil)
		e.deviceDriver = nil
	}
	if e.debugMessenger.Initialized() {
		e.debugDriver.DestroyDebugUtilsMessenger(e.debugMessenger, nil)
		e.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}
	if e.surface.Initialized() {
		e.surfaceDriver.DestroySurface(e.surface, nil)
		e.surface = khr_surface.Surface{}
	}
	if e.instanceDriver != nil {
		e.instanceDriver.DestroyInstance(nil)
		e.instanceDriver = nil
	}

	if e.window != nil {
		e.window.Destroy()
		e.window = nil
	}
	sdl.Quit()
}
