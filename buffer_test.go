package motorino

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func memoryTable(flags ...core1_0.MemoryPropertyFlags) *core1_0.PhysicalDeviceMemoryProperties {
	props := &core1_0.PhysicalDeviceMemoryProperties{}
	for _, f := range flags {
		props.MemoryTypes = append(props.MemoryTypes, core1_0.MemoryType{PropertyFlags: f})
	}
	return props
}

func TestFindMemoryTypePicksFirstMatch(t *testing.T) {
	table := memoryTable(
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
	)

	index, err := findMemoryType(table, 0b111, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	require.NoError(t, err)
	require.Equal(t, 1, index)
}

func TestFindMemoryTypeRespectsTypeFilter(t *testing.T) {
	table := memoryTable(
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyDeviceLocal,
	)

	// Only type 1 is allowed by the filter even though type 0 matches the
	// property flags.
	index, err := findMemoryType(table, 0b10, core1_0.MemoryPropertyDeviceLocal)
	require.NoError(t, err)
	require.Equal(t, 1, index)
}

func TestFindMemoryTypeRequiresPropertySuperset(t *testing.T) {
	table := memoryTable(
		core1_0.MemoryPropertyHostVisible,
	)

	_, err := findMemoryType(table, 0b1, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	require.ErrorIs(t, err, ErrNoSuitableMemoryType)
}

func TestFindMemoryTypeEmptyTable(t *testing.T) {
	_, err := findMemoryType(memoryTable(), 0b1, core1_0.MemoryPropertyDeviceLocal)
	require.ErrorIs(t, err, ErrNoSuitableMemoryType)
}

func TestUploadSharingFamiliesSameFamily(t *testing.T) {
	zero := 0
	require.Nil(t, uploadSharingFamilies(queueIndices{Graphics: &zero, Transfer: &zero, Present: &zero}))
}

func TestUploadSharingFamiliesDistinctFamilies(t *testing.T) {
	// The graphics queue draws from what the transfer queue wrote; with
	// distinct families the buffer must be shared across both.
	zero, one := 0, 1
	require.Equal(t, []int{0, 1},
		uploadSharingFamilies(queueIndices{Graphics: &zero, Transfer: &one, Present: &zero}))
}

func TestSubmitVertexDataRejectsNegativeCounts(t *testing.T) {
	e := &Engine{initialized: true, log: newNopLogger()}

	err := e.SubmitVertexData(Geometry{Data: make([]byte, 64), VertexCount: -1, IndexCount: 6})
	require.ErrorIs(t, err, ErrSubmissionFailed)

	err = e.SubmitVertexData(Geometry{Data: make([]byte, 64), VertexCount: 4, IndexCount: -6})
	require.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestSubmitVertexDataRejectsShortData(t *testing.T) {
	e := &Engine{initialized: true, log: newNopLogger()}

	geo := PackGeometry([]Vertex{{}, {}}, []uint16{0, 1})
	geo.Data = geo.Data[:len(geo.Data)-1]

	require.ErrorIs(t, e.SubmitVertexData(geo), ErrSubmissionFailed)
}

func TestSubmitVertexDataBeforeInit(t *testing.T) {
	e := &Engine{log: newNopLogger()}
	require.Error(t, e.SubmitVertexData(PackGeometry([]Vertex{{}}, nil)))
}
