package motorino

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// frameSlot holds everything one in-flight frame owns: its command buffer
// and the three synchronization primitives gating its reuse. Slots are
// created once, cycled round-robin, and destroyed at shutdown.
//
// A slot's fence is created signaled and follows
// signaled -> unsignaled (submitted) -> signaled (GPU done); the fence wait
// at the top of drawFrame is what bounds CPU recording to
// maxFramesInFlight outstanding submissions.
type frameSlot struct {
	commandBuffer  core1_0.CommandBuffer
	imageAvailable core1_0.Semaphore
	renderFinished core1_0.Semaphore
	inFlight       core1_0.Fence
}

// nextFrame advances the round-robin slot index.
func nextFrame(current int) int {
	return (current + 1) % maxFramesInFlight
}

// drawParams selects the draw call for a frame: an indexed draw sized by
// the most recent upload, or the fixed 3-vertex fallback when nothing was
// uploaded (the shader is expected to synthesize positions).
type drawParams struct {
	indexed bool
	count   int
}

func drawParamsFor(geo *geometryBuffer) drawParams {
	if geo == nil {
		return drawParams{indexed: false, count: 3}
	}
	return drawParams{indexed: true, count: geo.indexCount}
}

func (e *Engine) createCommandPools() error {
	pool, _, err := e.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *e.queues.Graphics,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating graphics command pool"), ErrDeviceCreationFailed)
	}
	e.graphicsPool = pool

	pool, _, err = e.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *e.queues.Transfer,
		Flags:            core1_0.CommandPoolCreateTransient,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating transfer command pool"), ErrDeviceCreationFailed)
	}
	e.transferPool = pool

	return nil
}

func (e *Engine) createFrameSlots() error {
	buffers, _, err := e.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        e.graphicsPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: maxFramesInFlight,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocating frame command buffers"), ErrDeviceCreationFailed)
	}

	for i := 0; i < maxFramesInFlight; i++ {
		imageAvailable, _, err := e.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Mark(errors.Wrap(err, "creating image-available semaphore"), ErrDeviceCreationFailed)
		}

		renderFinished, _, err := e.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Mark(errors.Wrap(err, "creating render-finished semaphore"), ErrDeviceCreationFailed)
		}

		// Signaled so the first wait on each slot passes immediately.
		fence, _, err := e.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return errors.Mark(errors.Wrap(err, "creating in-flight fence"), ErrDeviceCreationFailed)
		}

		e.frames[i] = frameSlot{
			commandBuffer:  buffers[i],
			imageAvailable: imageAvailable,
			renderFinished: renderFinished,
			inFlight:       fence,
		}
	}

	return nil
}

func (e *Engine) destroyFrameSlots() {
	for i := range e.frames {
		frame := &e.frames[i]
		if frame.inFlight.Initialized() {
			e.deviceDriver.DestroyFence(frame.inFlight, nil)
		}
		if frame.renderFinished.Initialized() {
			e.deviceDriver.DestroySemaphore(frame.renderFinished, nil)
		}
		if frame.imageAvailable.Initialized() {
			e.deviceDriver.DestroySemaphore(frame.imageAvailable, nil)
		}
		e.frames[i] = frameSlot{}
	}
}

// recordCommandBuffer re-records a frame's command buffer against the
// framebuffer for the acquired image. Viewport and scissor come from the
// live swapchain extent, so resized windows only need a swapchain rebuild.
func (e *Engine) recordCommandBuffer(cmd core1_0.CommandBuffer, imageIndex int) error {
	if _, err := e.deviceDriver.BeginCommandBuffer(cmd, core1_0.CommandBufferBeginInfo{}); err != nil {
		return errors.Wrap(err, "beginning command buffer")
	}

	extent := e.swapchain.extent

	err := e.deviceDriver.CmdBeginRenderPass(cmd, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  e.renderPass,
			Framebuffer: e.swapchain.framebuffers[imageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
			},
		})
	if err != nil {
		return errors.Wrap(err, "beginning render pass")
	}

	e.deviceDriver.CmdBindPipeline(cmd, core1_0.PipelineBindPointGraphics, e.graphicsPipeline)

	e.deviceDriver.CmdSetViewport(cmd, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	e.deviceDriver.CmdSetScissor(cmd, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: extent,
	})

	params := drawParamsFor(e.geometry)
	if params.indexed {
		e.deviceDriver.CmdBindVertexBuffers(cmd, 0, []core1_0.Buffer{e.geometry.buffer}, []int{0})
		e.deviceDriver.CmdBindIndexBuffer(cmd, e.geometry.buffer, e.geometry.indexOffset, core1_0.IndexTypeUInt16)
		e.deviceDriver.CmdDrawIndexed(cmd, params.count, 1, 0, 0, 0)
	} else {
		e.deviceDriver.CmdDraw(cmd, params.count, 1, 0, 0)
	}

	e.deviceDriver.CmdEndRenderPass(cmd)

	if _, err := e.deviceDriver.EndCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "ending command buffer")
	}
	return nil
}

// drawFrame runs one iteration of the present loop on the current slot:
// wait for the slot's fence, acquire an image, re-record, submit gated on
// the slot's semaphores and fence, present, advance. Out-of-date
// swapchains trigger a rebuild; the frame is retried on the next
// iteration rather than within this one.
func (e *Engine) drawFrame() error {
	frame := &e.frames[e.currentFrame]

	if _, err := e.deviceDriver.WaitForFences(true, common.NoTimeout, frame.inFlight); err != nil {
		return errors.Wrap(err, "waiting for frame fence")
	}

	imageIndex, res, err := e.swapchainDriver.AcquireNextImage(
		e.swapchain.swapchain, common.NoTimeout, &frame.imageAvailable, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return e.recreateSwapchain()
	} else if err != nil {
		return errors.Wrap(err, "acquiring swapchain image")
	}

	// Only reset once this frame is certain to submit, or the slot's
	// fence could end up permanently unsignaled.
	if _, err = e.deviceDriver.ResetFences(frame.inFlight); err != nil {
		return errors.Wrap(err, "resetting frame fence")
	}
	if _, err = e.deviceDriver.ResetCommandBuffer(frame.commandBuffer, 0); err != nil {
		return errors.Wrap(err, "resetting command buffer")
	}

	if err = e.recordCommandBuffer(frame.commandBuffer, imageIndex); err != nil {
		return err
	}

	_, err = e.deviceDriver.QueueSubmit(e.graphicsQueue, &frame.inFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{frame.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{frame.commandBuffer},
			SignalSemaphores: []core1_0.Semaphore{frame.renderFinished},
		},
	)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "submitting draw"), ErrSubmissionFailed)
	}

	res, err = e.swapchainDriver.QueuePresent(e.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{frame.renderFinished},
		Swapchains:     []khr_swapchain.Swapchain{e.swapchain.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		if err := e.recreateSwapchain(); err != nil {
			return err
		}
	} else if err != nil {
		return errors.Wrap(err, "presenting image")
	}

	e.currentFrame = nextFrame(e.currentFrame)
	return nil
}
