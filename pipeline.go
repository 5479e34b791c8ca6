package motorino

import (
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// ShaderStage identifies which programmable stage a shader file feeds.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return "unknown"
}

func (s ShaderStage) flags() core1_0.ShaderStageFlags {
	if s == StageFragment {
		return core1_0.StageFragment
	}
	return core1_0.StageVertex
}

// ShaderInfo names one SPIR-V file and the stage it belongs to. Paths are
// resolved relative to the process working directory.
type ShaderInfo struct {
	Stage ShaderStage
	Path  string
}

type shaderCode struct {
	stage ShaderStage
	words []uint32
}

// spirvWords converts raw bytecode to the little-endian 32-bit words the
// shader module expects.
func spirvWords(raw []byte) []uint32 {
	words := make([]uint32, len(raw)/4)
	for i := 0; i < len(words); i++ {
		byteIndex := i * 4
		words[i] = uint32(raw[byteIndex]) |
			uint32(raw[byteIndex+1])<<8 |
			uint32(raw[byteIndex+2])<<16 |
			uint32(raw[byteIndex+3])<<24
	}
	return words
}

// gatherShaderCode reads every listed shader file. Missing or unreadable
// files are skipped with a warning rather than failing the build; files
// that exist but are not plausible SPIR-V fail hard. An empty input list
// and a list where every file was skipped are both errors, since a
// pipeline with no stages cannot be created.
func gatherShaderCode(log *slog.Logger, shaders []ShaderInfo) ([]shaderCode, error) {
	if len(shaders) == 0 {
		return nil, ErrNoShadersProvided
	}

	var out []shaderCode
	for _, shader := range shaders {
		raw, err := os.ReadFile(shader.Path)
		if err != nil {
			log.Warn("skipping unreadable shader file", "stage", shader.Stage, "path", shader.Path, "error", err)
			continue
		}
		if len(raw) == 0 || len(raw)%4 != 0 {
			return nil, errors.Wrapf(ErrShaderLoadFailed, "%s is not SPIR-V bytecode (%d bytes)", shader.Path, len(raw))
		}

		out = append(out, shaderCode{stage: shader.Stage, words: spirvWords(raw)})
		log.Info("shader bytecode loaded", "stage", shader.Stage, "path", shader.Path, "bytes", len(raw))
	}

	if len(out) == 0 {
		return nil, errors.Wrap(ErrShaderLoadFailed, "every shader file was skipped")
	}
	return out, nil
}

// CreatePipeline compiles the engine's single graphics pipeline from the
// given shader list. Viewport and scissor are dynamic state, so a window
// resize never requires a pipeline rebuild. Shader modules are build-time
// inputs only and are destroyed before this returns.
func (e *Engine) CreatePipeline(shaders []ShaderInfo) error {
	if !e.initialized {
		return errors.New("CreatePipeline called before InitVulkan")
	}
	if e.pipelineBuilt {
		return errors.New("CreatePipeline called twice")
	}

	code, err := gatherShaderCode(e.log, shaders)
	if err != nil {
		return err
	}

	var stages []core1_0.PipelineShaderStageCreateInfo
	var modules []core1_0.ShaderModule
	defer func() {
		for _, module := range modules {
			e.deviceDriver.DestroyShaderModule(module, nil)
		}
	}()

	for _, shader := range code {
		module, _, err := e.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
			Code: shader.words,
		})
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "creating %s shader module", shader.stage), ErrShaderLoadFailed)
		}
		modules = append(modules, module)

		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  shader.stage.flags(),
			Module: module,
			Name:   "main",
		})
	}

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   getVertexBindingDescription(),
		VertexAttributeDescriptions: getVertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	// Placeholder values; both are dynamic and set during recording.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	// A retry after a failed build may already hold a layout.
	if e.pipelineLayout.Initialized() {
		e.deviceDriver.DestroyPipelineLayout(e.pipelineLayout, nil)
	}
	e.pipelineLayout, _, err = e.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating pipeline layout"), ErrShaderLoadFailed)
	}

	cache, useCache, err := e.openPipelineCache()
	if err != nil {
		return err
	}
	if useCache {
		defer e.deviceDriver.DestroyPipelineCache(cache, nil)
	}

	var cachePtr *core1_0.PipelineCache
	if useCache {
		cachePtr = &cache
	}

	buildStart := hrtime.Now()
	pipelines, _, err := e.deviceDriver.CreateGraphicsPipelines(cachePtr, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages:             stages,
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			DynamicState:       dynamicState,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             e.pipelineLayout,
			RenderPass:         e.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating graphics pipeline"), ErrShaderLoadFailed)
	}
	e.graphicsPipeline = pipelines[0]
	e.pipelineBuilt = true

	e.log.Info("graphics pipeline created",
		"stages", len(stages),
		"buildTime", (hrtime.Now() - buildStart).Round(time.Microsecond))

	if useCache {
		e.savePipelineCache(cache)
	}
	return nil
}
