package motorino

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		expected int
	}{
		{"one above minimum", 2, 8, 3},
		{"clamped to maximum", 3, 3, 3},
		{"unbounded maximum", 2, 0, 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			capabilities := &khr_surface.SurfaceCapabilities{
				MinImageCount: test.min,
				MaxImageCount: test.max,
			}
			require.Equal(t, test.expected, chooseImageCount(capabilities))
		})
	}
}

func TestChooseSurfaceFormatPrefersBGRASrgb(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	chosen := chooseSurfaceFormat(formats)
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, chosen.Format)
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	require.Equal(t, formats[0], chooseSurfaceFormat(formats))
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
	}
	require.Equal(t, khr_surface.PresentModeMailbox, choosePresentMode(withMailbox))

	fifoOnly := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
	}
	require.Equal(t, khr_surface.PresentModeFIFO, choosePresentMode(fifoOnly))
}

func TestChooseExtentHonorsFixedSurfaceExtent(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 1024, Height: 768},
	}

	extent := chooseExtent(capabilities, 333, 444)
	require.Equal(t, core1_0.Extent2D{Width: 1024, Height: 768}, extent)
}

func TestChooseExtentClampsDrawableSize(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: core1_0.Extent2D{Width: 2000, Height: 2000},
	}

	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, chooseExtent(capabilities, 800, 600))
	require.Equal(t, core1_0.Extent2D{Width: 100, Height: 100}, chooseExtent(capabilities, 10, 10))
	require.Equal(t, core1_0.Extent2D{Width: 2000, Height: 2000}, chooseExtent(capabilities, 4000, 4000))
}
