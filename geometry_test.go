package motorino

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
)

func TestVertexStride(t *testing.T) {
	// Two position floats plus three color floats, no padding.
	require.Equal(t, 20, VertexStride)
}

func TestPackGeometryLayout(t *testing.T) {
	vertices := []Vertex{
		{Position: mgl32.Vec2{-0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec2{0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}},
		{Position: mgl32.Vec2{0.5, 0.5}, Color: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec2{-0.5, 0.5}, Color: mgl32.Vec3{1, 1, 0}},
	}
	indices := []uint16{0, 1, 2, 2, 3, 0}

	geo := PackGeometry(vertices, indices)

	require.Equal(t, 4, geo.VertexCount)
	require.Equal(t, 6, geo.IndexCount)
	require.Equal(t, 4*VertexStride, geo.vertexRegionSize())
	require.Equal(t, 4*VertexStride+6*IndexStride, geo.totalSize())
	require.Len(t, geo.Data, geo.totalSize())

	// First float of the first vertex.
	x := math.Float32frombits(common.ByteOrder.Uint32(geo.Data[0:4]))
	require.Equal(t, float32(-0.5), x)

	// Index region starts right after the vertices.
	indexRegion := geo.Data[geo.vertexRegionSize():]
	for i, expected := range indices {
		require.Equal(t, expected, common.ByteOrder.Uint16(indexRegion[i*IndexStride:]))
	}
}

func TestPackGeometryEmpty(t *testing.T) {
	geo := PackGeometry(nil, nil)
	require.Zero(t, geo.totalSize())
	require.Empty(t, geo.Data)
}

func TestVertexAttributeDescriptions(t *testing.T) {
	attributes := getVertexAttributeDescriptions()
	require.Len(t, attributes, 2)
	require.Equal(t, 0, attributes[0].Offset)
	require.Equal(t, int(binary.Size(mgl32.Vec2{})), attributes[1].Offset)

	bindings := getVertexBindingDescription()
	require.Len(t, bindings, 1)
	require.Equal(t, VertexStride, bindings[0].Stride)
}
