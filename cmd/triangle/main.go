package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/nkgt/motorino"
)

func init() {
	// SDL event handling and Vulkan presentation have to stay on the
	// thread that created the window.
	runtime.LockOSThread()
}

var colorPalette = []mgl32.Vec3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 1, 0},
}

// quadGeometry is the default scene: two triangles covering a centered
// quad, one palette color per corner.
func quadGeometry() motorino.Geometry {
	vertices := []motorino.Vertex{
		{Position: mgl32.Vec2{-0.5, -0.5}, Color: colorPalette[0]},
		{Position: mgl32.Vec2{0.5, -0.5}, Color: colorPalette[1]},
		{Position: mgl32.Vec2{0.5, 0.5}, Color: colorPalette[2]},
		{Position: mgl32.Vec2{-0.5, 0.5}, Color: colorPalette[3]},
	}
	indices := []uint16{0, 1, 2, 2, 3, 0}
	return motorino.PackGeometry(vertices, indices)
}

// meshGeometry flattens a wavefront OBJ onto the XY plane: positions keep
// their x and y, depth is discarded, faces are fan-triangulated, colors
// cycle through the palette.
func meshGeometry(path string) (motorino.Geometry, error) {
	decoded, err := obj.Decode(path, "")
	if err != nil {
		return motorino.Geometry{}, err
	}

	var vertices []motorino.Vertex
	for i := 0; i+2 < decoded.Vertices.Size(); i += 3 {
		vertices = append(vertices, motorino.Vertex{
			Position: mgl32.Vec2{decoded.Vertices[i], decoded.Vertices[i+1]},
			Color:    colorPalette[(i/3)%len(colorPalette)],
		})
	}

	var indices []uint16
	for _, object := range decoded.Objects {
		for _, face := range object.Faces {
			for corner := 1; corner+1 < len(face.Vertices); corner++ {
				indices = append(indices,
					uint16(face.Vertices[0]),
					uint16(face.Vertices[corner]),
					uint16(face.Vertices[corner+1]))
			}
		}
	}

	return motorino.PackGeometry(vertices, indices), nil
}

func main() {
	meshPath := flag.String("mesh", "", "wavefront OBJ file to render instead of the built-in quad")
	validate := flag.Bool("validate", false, "enable the Khronos validation layer")
	verbose := flag.Bool("v", false, "log engine diagnostics to stderr")
	cachePath := flag.String("pipeline-cache", "", "file to persist the pipeline cache across runs")
	flag.Parse()

	opts := []motorino.Option{}
	if *verbose {
		opts = append(opts, motorino.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	if *validate {
		opts = append(opts, motorino.WithValidation())
	}
	if *cachePath != "" {
		opts = append(opts, motorino.WithPipelineCachePath(*cachePath))
	}

	engine, err := motorino.New(800, 600, "Triangle", opts...)
	if err != nil {
		log.Fatalf("creating engine: %+v", err)
	}
	defer engine.Close()

	if err := engine.InitVulkan(); err != nil {
		log.Fatalf("initializing vulkan: %+v", err)
	}

	err = engine.CreatePipeline([]motorino.ShaderInfo{
		{Stage: motorino.StageVertex, Path: "shaders/vert.spv"},
		{Stage: motorino.StageFragment, Path: "shaders/frag.spv"},
	})
	if err != nil {
		log.Fatalf("creating pipeline: %+v", err)
	}

	geometry := quadGeometry()
	if *meshPath != "" {
		geometry, err = meshGeometry(*meshPath)
		if err != nil {
			log.Fatalf("loading mesh %s: %+v", *meshPath, err)
		}
	}
	if err := engine.SubmitVertexData(geometry); err != nil {
		log.Fatalf("uploading geometry: %+v", err)
	}

	engine.Run()
}
