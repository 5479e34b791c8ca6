package motorino

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// geometryBuffer is the device-local buffer a successful upload leaves
// behind: vertex data at offset zero, index data immediately after. The
// engine owns it until shutdown or the next upload.
type geometryBuffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory

	vertexCount int
	indexCount  int
	indexOffset int
}

// findMemoryType returns the first memory type index that passes the
// buffer's type-bit filter and carries at least the requested property
// flags. The scan order is the device's, so the result is deterministic
// for a given memory-property table.
func findMemoryType(
	memProperties *core1_0.PhysicalDeviceMemoryProperties,
	typeFilter uint32,
	properties core1_0.MemoryPropertyFlags,
) (int, error) {
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoSuitableMemoryType, "no memory type matches filter 0x%x with properties %s", typeFilter, properties)
}

// uploadSharingFamilies returns the family list a buffer needs when it is
// written on the transfer queue and read on the graphics queue. With both
// roles on one family exclusive sharing is fine and nil is returned; with
// distinct families the buffer must be concurrent across both, since a
// queue-idle wait orders execution but performs no ownership transfer.
func uploadSharingFamilies(queues queueIndices) []int {
	if *queues.Graphics == *queues.Transfer {
		return nil
	}
	return []int{*queues.Graphics, *queues.Transfer}
}

// createBuffer allocates a buffer and backing memory of the requested
// properties and binds them. A non-empty sharingFamilies makes the buffer
// concurrent across those families. On failure the partially created pair
// is destroyed before returning.
func (e *Engine) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, sharingFamilies []int) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	sharingMode := core1_0.SharingModeExclusive
	if len(sharingFamilies) > 1 {
		sharingMode = core1_0.SharingModeConcurrent
	}

	buffer, _, err := e.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:               size,
		Usage:              usage,
		SharingMode:        sharingMode,
		QueueFamilyIndices: sharingFamilies,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Mark(errors.Wrap(err, "creating buffer"), ErrSubmissionFailed)
	}

	memRequirements := e.deviceDriver.GetBufferMemoryRequirements(buffer)
	memProperties := e.instanceDriver.GetPhysicalDeviceMemoryProperties(e.physicalDevice)

	memoryTypeIndex, err := findMemoryType(memProperties, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		e.deviceDriver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memory, _, err := e.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		e.deviceDriver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Mark(errors.Wrap(err, "allocating buffer memory"), ErrSubmissionFailed)
	}

	if _, err = e.deviceDriver.BindBufferMemory(buffer, memory, 0); err != nil {
		e.deviceDriver.DestroyBuffer(buffer, nil)
		e.deviceDriver.FreeMemory(memory, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Mark(errors.Wrap(err, "binding buffer memory"), ErrSubmissionFailed)
	}

	return buffer, memory, nil
}

// oneShotTransfer records, submits, and fully retires a single-use command
// buffer on the transfer queue. The queue-idle wait serializes the upload
// with everything else; correctness over throughput.
func (e *Engine) oneShotTransfer(record func(cmd core1_0.CommandBuffer) error) error {
	buffers, _, err := e.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        e.transferPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocating transfer command buffer"), ErrSubmissionFailed)
	}
	cmd := buffers[0]
	defer e.deviceDriver.FreeCommandBuffers(cmd)

	if _, err = e.deviceDriver.BeginCommandBuffer(cmd, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Mark(errors.Wrap(err, "beginning transfer command buffer"), ErrSubmissionFailed)
	}

	if err = record(cmd); err != nil {
		return err
	}

	if _, err = e.deviceDriver.EndCommandBuffer(cmd); err != nil {
		return errors.Mark(errors.Wrap(err, "ending transfer command buffer"), ErrSubmissionFailed)
	}

	if _, err = e.deviceDriver.QueueSubmit(e.transferQueue, nil, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{cmd},
	}); err != nil {
		return errors.Mark(errors.Wrap(err, "submitting transfer"), ErrSubmissionFailed)
	}

	if _, err = e.deviceDriver.QueueWaitIdle(e.transferQueue); err != nil {
		return errors.Mark(errors.Wrap(err, "waiting for transfer queue"), ErrSubmissionFailed)
	}
	return nil
}

// SubmitVertexData uploads packed geometry into a device-local buffer via
// a transient staging buffer and a one-shot transfer. The call blocks
// until the copy completes; the caller keeps ownership of geo.Data. Any
// previously uploaded geometry is released once the device is idle.
func (e *Engine) SubmitVertexData(geo Geometry) error {
	if !e.initialized {
		return errors.New("SubmitVertexData called before InitVulkan")
	}

	if geo.VertexCount < 0 || geo.IndexCount < 0 {
		return errors.Wrapf(ErrSubmissionFailed, "negative geometry counts (%d vertices, %d indices)", geo.VertexCount, geo.IndexCount)
	}

	totalSize := geo.totalSize()
	if totalSize == 0 {
		return errors.Wrap(ErrSubmissionFailed, "geometry has no vertices or indices")
	}
	if len(geo.Data) < totalSize {
		return errors.Wrapf(ErrSubmissionFailed, "geometry data is %d bytes, counts require %d", len(geo.Data), totalSize)
	}

	// The staging buffer only ever touches the transfer queue.
	staging, stagingMemory, err := e.createBuffer(totalSize,
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
		nil)
	if err != nil {
		return err
	}
	defer e.deviceDriver.DestroyBuffer(staging, nil)
	defer e.deviceDriver.FreeMemory(stagingMemory, nil)

	memoryPtr, _, err := e.deviceDriver.MapMemory(stagingMemory, 0, totalSize, 0)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "mapping staging memory"), ErrSubmissionFailed)
	}
	copy(unsafe.Slice((*byte)(memoryPtr), totalSize), geo.Data[:totalSize])
	e.deviceDriver.UnmapMemory(stagingMemory)

	// The destination is written on the transfer queue and drawn from on
	// the graphics queue.
	destination, destinationMemory, err := e.createBuffer(totalSize,
		core1_0.BufferUsageVertexBuffer|core1_0.BufferUsageIndexBuffer|core1_0.BufferUsageTransferDst,
		core1_0.MemoryPropertyDeviceLocal,
		uploadSharingFamilies(e.queues))
	if err != nil {
		return err
	}

	err = e.oneShotTransfer(func(cmd core1_0.CommandBuffer) error {
		err := e.deviceDriver.CmdCopyBuffer(cmd, staging, destination,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      totalSize,
			},
		)
		if err != nil {
			return errors.Mark(errors.Wrap(err, "recording buffer copy"), ErrSubmissionFailed)
		}
		return nil
	})
	if err != nil {
		e.deviceDriver.DestroyBuffer(destination, nil)
		e.deviceDriver.FreeMemory(destinationMemory, nil)
		return err
	}

	// No buffer pooling: the previous upload, if any, dies here. The idle
	// wait covers the case of an upload issued while frames are in flight.
	if e.geometry != nil {
		_, _ = e.deviceDriver.DeviceWaitIdle()
		e.releaseGeometry()
	}

	e.geometry = &geometryBuffer{
		buffer:      destination,
		memory:      destinationMemory,
		vertexCount: geo.VertexCount,
		indexCount:  geo.IndexCount,
		indexOffset: geo.vertexRegionSize(),
	}

	e.log.Info("geometry uploaded",
		"vertices", geo.VertexCount,
		"indices", geo.IndexCount,
		"bytes", totalSize)
	return nil
}

func (e *Engine) releaseGeometry() {
	if e.geometry == nil {
		return
	}
	if e.geometry.buffer.Initialized() {
		e.deviceDriver.DestroyBuffer(e.geometry.buffer, nil)
	}
	if e.geometry.memory.Initialized() {
		e.deviceDriver.FreeMemory(e.geometry.memory, nil)
	}
	e.geometry = nil
}
