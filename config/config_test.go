package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/internal/compress"
)

func valid() Config {
	c := Defaults()
	c.Catalog = "cat.txt"
	c.RAColumn = 2
	c.DecColumn = 3
	c.Resolution = 0.03
	c.StampSize = 5
	c.Images = "tiles/*.fits"
	c.Output = "stamps"
	return c
}

func TestValidateReportsAllMissing(t *testing.T) {
	c := Defaults()
	err := c.Validate()

	var missing *MissingOptionsError
	require.ErrorAs(t, err, &missing)
	assert.ErrorIs(t, err, ErrMissingOption)
	assert.Equal(t, []string{"catalog", "dec-column", "images", "output", "ra-column", "resolution", "stamp-size"}, missing.Options)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative column", func(c *Config) { c.IDColumn = -1 }},
		{"negative resolution", func(c *Config) { c.Resolution = -1 }},
		{"negative stamp", func(c *Config) { c.StampSize = -2 }},
		{"negative check", func(c *Config) { c.CheckSize = -1 }},
		{"no threads", func(c *Config) { c.Threads = 0 }},
		{"bad codec", func(c *Config) { c.Compression = "bzip2" }},
		{"resume without table", func(c *Config) { c.Resume = true; c.RunID = "r" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidOption)
		})
	}

	c := valid()
	c.CheckSize = 0
	assert.NoError(t, c.Validate())
}

func TestValidateMemoryLimit(t *testing.T) {
	// 167 x 167 float32 canvas.
	const canvas = 167 * 167 * 4

	c := valid()
	c.MemoryLimit = canvas - 1
	assert.ErrorIs(t, c.Validate(), ErrInvalidOption)

	c.MemoryLimit = canvas
	assert.NoError(t, c.Validate())
	assert.Zero(t, c.CacheReserve())

	c.Survey = "s3://bucket/tiles"
	c.CacheSize = 1 << 20
	assert.Equal(t, int64(1<<20), c.CacheReserve())
	assert.ErrorIs(t, c.Validate(), ErrInvalidOption)

	c.MemoryLimit = 1<<20 + canvas
	assert.NoError(t, c.Validate())

	c.CacheSize = 0
	c.MemoryLimit = canvas
	assert.NoError(t, c.Validate())
}

func TestSideForcedOdd(t *testing.T) {
	tests := []struct {
		stamp, res float64
		want       int
	}{
		{5, 0.03, 167},   // floor(166.67) = 166 -> 167
		{9, 1, 9},
		{10, 1, 11},
		{0.5, 1, 1},
	}
	for _, tt := range tests {
		c := Config{StampSize: tt.stamp, Resolution: tt.res}
		assert.Equal(t, tt.want, c.Side(), "stamp=%g res=%g", tt.stamp, tt.res)
	}
}

func TestColumnIndices(t *testing.T) {
	c := valid()
	assert.Equal(t, 1, c.RAIndex())
	assert.Equal(t, 2, c.DecIndex())
	assert.Equal(t, -1, c.IDIndex())
	c.IDColumn = 1
	assert.Equal(t, 0, c.IDIndex())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stampcut.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog: from-file.txt
ra-column: 1
dec-column: 2
resolution: 0.2
stamp-size: 3
images: "*.fits"
output: out
compression: gzip
remote:
  endpoint: http://localhost:9000
  use-ssl: false
`), 0o600))

	t.Setenv("STAMPCUT_CATALOG", "from-env.txt")
	t.Setenv("STAMPCUT_REMOTE_REGION", "eu-west-1")

	v := NewViper()
	v.Set("threads", 2)

	c, err := Load(v, path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "from-env.txt", c.Catalog)
	assert.Equal(t, 2, c.Threads)
	assert.Equal(t, 0.2, c.Resolution)
	assert.Equal(t, DefaultCheckSize, c.CheckSize)
	assert.Equal(t, DefaultExt, c.Ext)
	assert.Equal(t, compress.Gzip, c.Codec())
	assert.Equal(t, "http://localhost:9000", c.Remote.Endpoint)
	assert.Equal(t, "eu-west-1", c.Remote.Region)
	assert.False(t, c.Remote.UseSSL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestAsYAMLOmitsSecret(t *testing.T) {
	c := valid()
	c.Remote.SecretKey = "hunter2"

	out, err := c.AsYAML()
	require.NoError(t, err)
	assert.Contains(t, out, "catalog: cat.txt")
	assert.Contains(t, out, "stamp-size: 5")
	assert.NotContains(t, out, "hunter2")
}
