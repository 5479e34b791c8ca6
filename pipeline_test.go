package motorino

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// A single SPIR-V word per shader is enough for the loader; validity of the
// bytecode itself is the driver's problem.
func writeShader(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestGatherShaderCodeEmptyList(t *testing.T) {
	_, err := gatherShaderCode(newNopLogger(), nil)
	require.ErrorIs(t, err, ErrNoShadersProvided)
}

func TestGatherShaderCodeReadsValidFiles(t *testing.T) {
	vert := writeShader(t, "vert.spv", []byte{0x03, 0x02, 0x23, 0x07})
	frag := writeShader(t, "frag.spv", []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})

	code, err := gatherShaderCode(newNopLogger(), []ShaderInfo{
		{Stage: StageVertex, Path: vert},
		{Stage: StageFragment, Path: frag},
	})
	require.NoError(t, err)
	require.Len(t, code, 2)
	require.Equal(t, StageVertex, code[0].stage)
	require.Equal(t, []uint32{0x07230203}, code[0].words)
	require.Equal(t, []uint32{0x07230203, 0x00010000}, code[1].words)
}

func TestGatherShaderCodeSkipsMissingFiles(t *testing.T) {
	frag := writeShader(t, "frag.spv", []byte{0x03, 0x02, 0x23, 0x07})

	code, err := gatherShaderCode(newNopLogger(), []ShaderInfo{
		{Stage: StageVertex, Path: filepath.Join(t.TempDir(), "does-not-exist.spv")},
		{Stage: StageFragment, Path: frag},
	})
	require.NoError(t, err)
	require.Len(t, code, 1)
	require.Equal(t, StageFragment, code[0].stage)
}

func TestGatherShaderCodeAllSkippedIsError(t *testing.T) {
	_, err := gatherShaderCode(newNopLogger(), []ShaderInfo{
		{Stage: StageVertex, Path: filepath.Join(t.TempDir(), "missing.spv")},
	})
	require.ErrorIs(t, err, ErrShaderLoadFailed)
}

func TestGatherShaderCodeRejectsMalformedBytecode(t *testing.T) {
	truncated := writeShader(t, "truncated.spv", []byte{0x03, 0x02, 0x23})

	_, err := gatherShaderCode(newNopLogger(), []ShaderInfo{
		{Stage: StageVertex, Path: truncated},
	})
	require.ErrorIs(t, err, ErrShaderLoadFailed)

	empty := writeShader(t, "empty.spv", nil)
	_, err = gatherShaderCode(newNopLogger(), []ShaderInfo{
		{Stage: StageVertex, Path: empty},
	})
	require.ErrorIs(t, err, ErrShaderLoadFailed)
}

func TestSpirvWords(t *testing.T) {
	words := spirvWords([]byte{0x01, 0x02, 0x03, 0x04, 0xff, 0x00, 0x00, 0x00})
	require.Equal(t, []uint32{0x04030201, 0x000000ff}, words)
}

func TestShaderStageString(t *testing.T) {
	require.Equal(t, "vertex", StageVertex.String())
	require.Equal(t, "fragment", StageFragment.String())
}
