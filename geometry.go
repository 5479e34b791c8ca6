package motorino

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Vertex is the only vertex layout the fixed pipeline understands: a 2D
// position followed by an RGB color, tightly packed.
type Vertex struct {
	Position mgl32.Vec2
	Color    mgl32.Vec3
}

const (
	// VertexStride is the byte size of one Vertex in the geometry region.
	VertexStride = int(unsafe.Sizeof(Vertex{}))

	// IndexStride is the byte size of one index. Indices are 16-bit.
	IndexStride = 2
)

// Geometry is a packed byte region holding VertexCount vertices followed
// immediately by IndexCount 16-bit indices. The caller retains ownership of
// Data; SubmitVertexData copies it before returning.
type Geometry struct {
	Data        []byte
	VertexCount int
	IndexCount  int
}

// vertexRegionSize returns the byte size of the vertex region, which is
// also the byte offset of the index region.
func (g Geometry) vertexRegionSize() int {
	return g.VertexCount * VertexStride
}

// totalSize returns the byte size of the full packed region.
func (g Geometry) totalSize() int {
	return g.vertexRegionSize() + g.IndexCount*IndexStride
}

func getVertexBindingDescription() []core1_0.VertexInputBindingDescription {
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    VertexStride,
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func getVertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
	}
}

// PackGeometry lays out vertices and indices in the byte format
// SubmitVertexData expects: all vertices first, indices immediately after.
func PackGeometry(vertices []Vertex, indices []uint16) Geometry {
	buf := &bytes.Buffer{}
	buf.Grow(len(vertices)*VertexStride + len(indices)*IndexStride)

	// binary.Size matches VertexStride because Vertex is tightly packed.
	_ = binary.Write(buf, common.ByteOrder, vertices)
	_ = binary.Write(buf, common.ByteOrder, indices)

	return Geometry{
		Data:        buf.Bytes(),
		VertexCount: len(vertices),
		IndexCount:  len(indices),
	}
}
