// Package motorino is a small Vulkan rendering engine built on the
// vkngwrapper bindings. It owns the frame-execution core of a renderer:
// device and queue selection, swapchain lifecycle (including recreation on
// resize), a single fixed graphics pipeline, a staging-buffer upload path
// for vertex/index geometry, and a double-buffered present loop driven by
// per-frame fences and semaphores.
//
// The intended call sequence is New, InitVulkan, CreatePipeline, optionally
// SubmitVertexData, then Run, which blocks until the window is closed. All
// host-side calls are synchronous and must happen on the thread that created
// the engine (SDL requirement; lock it with runtime.LockOSThread).
//
// Deliberately out of scope: scene graphs, multiple render passes or
// pipelines, depth/stencil attachments, and shader compilation. Shaders are
// consumed as SPIR-V bytecode produced offline.
package motorino
