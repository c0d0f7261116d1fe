package options

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SHADERTOY_KEY", "")
	opts, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def, opts)
	assert.Equal(t, 128, opts.Concurrency)
	assert.Equal(t, ButtonRight, opts.PointerButton)
	require.NoError(t, opts.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("SHADERTOY_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
shader_id = 7
concurrency = 16
pointer_button = "any"

[record]
fps = 30
`), 0644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), opts.ShaderID)
	assert.Equal(t, 16, opts.Concurrency)
	assert.Equal(t, ButtonAny, opts.PointerButton)
	assert.Equal(t, 30, opts.Record.FPS)
	assert.Equal(t, 10.0, opts.Record.Duration, "unset keys keep defaults")
	assert.Equal(t, "from-env", opts.APIKey)
}

func TestFileKeyBeatsEnvironment(t *testing.T) {
	t.Setenv("SHADERTOY_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`api_key = "from-file"`), 0644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", opts.APIKey)
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency = ["), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTripsSelection(t *testing.T) {
	t.Setenv("SHADERTOY_KEY", "")
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	opts := Default()
	opts.ShaderID = 42
	opts.Fullscreen = true
	require.NoError(t, opts.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), loaded.ShaderID)
	assert.True(t, loaded.Fullscreen)
}

func TestSaveDoesNotPersistEnvironmentKey(t *testing.T) {
	t.Setenv("SHADERTOY_KEY", "secret")
	path := filepath.Join(t.TempDir(), "config.toml")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", opts.APIKey)
	opts.ShaderID = 3
	require.NoError(t, opts.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), "shader_id = 3")
}

func TestFlagsOverrideLoadedValues(t *testing.T) {
	opts := Default()
	opts.Concurrency = 16

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	opts.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-width", "640", "-button", "none"}))

	assert.Equal(t, 640, opts.Width)
	assert.Equal(t, ButtonNone, opts.PointerButton)
	assert.Equal(t, 16, opts.Concurrency)
}

func TestValidate(t *testing.T) {
	opts := Default()
	opts.PointerButton = "middle"
	assert.Error(t, opts.Validate())

	opts = Default()
	opts.Concurrency = 0
	assert.Error(t, opts.Validate())

	opts = Default()
	opts.Record.FPS = 0
	assert.Error(t, opts.Validate())
}

func TestConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG directories apply to unix-like systems")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cfg/glowsaver", dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cfg/glowsaver/config.toml", path)

	data, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/data/glowsaver", data)
	assert.Equal(t, "/tmp/data/glowsaver/glowsaver.db", Default().Database)
}
