package motorino

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func presentOn(supported ...int) func(int) (bool, error) {
	return func(familyIndex int) (bool, error) {
		for _, s := range supported {
			if s == familyIndex {
				return true, nil
			}
		}
		return false, nil
	}
}

func TestResolveQueueFamiliesSingleFamily(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueGraphics | core1_0.QueueTransfer},
	}

	indices, err := resolveQueueFamilies(families, presentOn(0))
	require.NoError(t, err)
	require.Equal(t, 0, *indices.Graphics)
	require.Equal(t, 0, *indices.Transfer)
	require.Equal(t, 0, *indices.Present)
	require.Equal(t, []int{0}, indices.unique())
}

func TestResolveQueueFamiliesSplitRoles(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueCompute},
		{QueueFlags: core1_0.QueueGraphics},
		{QueueFlags: core1_0.QueueTransfer},
	}

	indices, err := resolveQueueFamilies(families, presentOn(2))
	require.NoError(t, err)
	require.Equal(t, 1, *indices.Graphics)
	require.Equal(t, 2, *indices.Transfer)
	require.Equal(t, 2, *indices.Present)
	require.Equal(t, []int{1, 2}, indices.unique())
}

func TestResolveQueueFamiliesPrefersFirstMatch(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueGraphics | core1_0.QueueTransfer},
		{QueueFlags: core1_0.QueueGraphics | core1_0.QueueTransfer},
	}

	indices, err := resolveQueueFamilies(families, presentOn(0, 1))
	require.NoError(t, err)
	require.Equal(t, 0, *indices.Graphics)
	require.Equal(t, 0, *indices.Transfer)
	require.Equal(t, 0, *indices.Present)
}

func TestResolveQueueFamiliesNoPresentSupport(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueGraphics | core1_0.QueueTransfer},
	}

	_, err := resolveQueueFamilies(families, presentOn())
	require.ErrorIs(t, err, ErrIncompleteQueueSupport)
}

func TestResolveQueueFamiliesNoGraphics(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueTransfer},
	}

	_, err := resolveQueueFamilies(families, presentOn(0))
	require.ErrorIs(t, err, ErrIncompleteQueueSupport)
}

func TestResolveQueueFamiliesEmptyList(t *testing.T) {
	_, err := resolveQueueFamilies(nil, presentOn())
	require.ErrorIs(t, err, ErrIncompleteQueueSupport)
}

func TestResolveQueueFamiliesPresentQueryError(t *testing.T) {
	families := []core1_0.QueueFamilyProperties{
		{QueueFlags: core1_0.QueueGraphics | core1_0.QueueTransfer},
	}
	queryErr := errors.New("surface lost")

	_, err := resolveQueueFamilies(families, func(int) (bool, error) {
		return false, queryErr
	})
	require.ErrorIs(t, err, queryErr)
}

func TestQueueIndicesUniqueDeduplicates(t *testing.T) {
	zero, two := 0, 2

	indices := queueIndices{Graphics: &zero, Transfer: &two, Present: &zero}
	require.Equal(t, []int{0, 2}, indices.unique())

	indices = queueIndices{Graphics: &zero, Transfer: &zero, Present: &zero}
	require.Equal(t, []int{0}, indices.unique())
}
