// Package config provides configuration loading and validation for stampcut.
//
// Values come, lowest precedence first, from Defaults, an optional YAML
// file, STAMPCUT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stampcut/internal/compress"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "STAMPCUT"

const (
	// DefaultCheckSize is the side of the blank-center test window.
	DefaultCheckSize = 3
	// DefaultExt is appended to stamp names.
	DefaultExt = ".fits"
	// DefaultLogFile is the per-target log written into the output.
	DefaultLogFile = "psinfo.txt"
	// DefaultReportFile is the fixed-width report written into the output.
	DefaultReportFile = "psreport.txt"
	// DefaultCacheSize is the block cache for remote survey stores.
	DefaultCacheSize = 256 << 20
	// DefaultRetries is the number of attempts against remote stores.
	DefaultRetries = 4
)

var (
	// ErrMissingOption is matched by MissingOptionsError.
	ErrMissingOption = errors.New("config: missing required option")
	// ErrInvalidOption is returned for out-of-range values.
	ErrInvalidOption = errors.New("config: invalid option")
)

// MissingOptionsError lists every required option that was not set.
type MissingOptionsError struct {
	Options []string
}

func (e *MissingOptionsError) Error() string {
	return fmt.Sprintf("config: missing required options: %s", strings.Join(e.Options, ", "))
}

// Unwrap returns ErrMissingOption.
func (e *MissingOptionsError) Unwrap() error { return ErrMissingOption }

// Config is the resolved run configuration. Column numbers count from 1.
type Config struct {
	Catalog   string `mapstructure:"catalog" yaml:"catalog"`
	IDColumn  int    `mapstructure:"id-column" yaml:"id-column"`
	RAColumn  int    `mapstructure:"ra-column" yaml:"ra-column"`
	DecColumn int    `mapstructure:"dec-column" yaml:"dec-column"`

	// Resolution is the survey pixel scale in arcsec/pixel.
	Resolution float64 `mapstructure:"resolution" yaml:"resolution"`
	// StampSize is the stamp side in arcseconds.
	StampSize float64 `mapstructure:"stamp-size" yaml:"stamp-size"`

	// Survey locates the tile store: a directory, s3://bucket/prefix or
	// minio://bucket/prefix.
	Survey string `mapstructure:"survey" yaml:"survey"`
	// Images is the tile name pattern inside the survey store.
	Images string `mapstructure:"images" yaml:"images"`
	// Weights is the optional weight map pattern.
	Weights string `mapstructure:"weights" yaml:"weights,omitempty"`

	// Output locates the stamp store, with the same forms as Survey.
	Output      string `mapstructure:"output" yaml:"output"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	Ext         string `mapstructure:"ext" yaml:"ext"`
	Compression string `mapstructure:"compression" yaml:"compression,omitempty"`
	Clean       bool   `mapstructure:"clean" yaml:"clean"`
	LogFile     string `mapstructure:"log-file" yaml:"log-file"`
	ReportFile  string `mapstructure:"report-file" yaml:"report-file"`

	Threads   int  `mapstructure:"threads" yaml:"threads"`
	CheckSize int  `mapstructure:"check-size" yaml:"check-size"`
	Verbose   bool `mapstructure:"verbose" yaml:"verbose"`

	// MemoryLimit caps stamp canvases. A remote survey's block cache is
	// reserved from it up front.
	MemoryLimit  int64 `mapstructure:"memory-limit" yaml:"memory-limit,omitempty"`
	MaxOpenTiles int64 `mapstructure:"max-open-tiles" yaml:"max-open-tiles,omitempty"`
	IOLimit      int64 `mapstructure:"io-limit" yaml:"io-limit,omitempty"`
	CacheSize    int64 `mapstructure:"cache-size" yaml:"cache-size"`
	Retries      int   `mapstructure:"retries" yaml:"retries"`

	MetricsFile string `mapstructure:"metrics-file" yaml:"metrics-file,omitempty"`
	// ResultTable is a DynamoDB table receiving every log entry.
	ResultTable string `mapstructure:"result-table" yaml:"result-table,omitempty"`
	// RunID names the run; generated when empty.
	RunID string `mapstructure:"run-id" yaml:"run-id,omitempty"`
	// Resume skips targets already stored in ResultTable under RunID.
	Resume bool `mapstructure:"resume" yaml:"resume"`

	Remote RemoteConfig `mapstructure:"remote" yaml:"remote,omitempty"`
}

// RemoteConfig holds object store settings shared by Survey and Output.
type RemoteConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Region    string `mapstructure:"region" yaml:"region,omitempty"`
	AccessKey string `mapstructure:"access-key" yaml:"access-key,omitempty"`
	SecretKey string `mapstructure:"secret-key" yaml:"-"`
	UseSSL    bool   `mapstructure:"use-ssl" yaml:"use-ssl"`
}

// Defaults returns the configuration used for unset options.
func Defaults() Config {
	return Config{
		Survey:     ".",
		Ext:        DefaultExt,
		LogFile:    DefaultLogFile,
		ReportFile: DefaultReportFile,
		Threads:    runtime.NumCPU(),
		CheckSize:  DefaultCheckSize,
		CacheSize:  DefaultCacheSize,
		Retries:    DefaultRetries,
		Remote:     RemoteConfig{UseSSL: true},
	}
}

// NewViper returns a viper instance with the defaults registered and
// environment lookup enabled: "stamp-size" reads STAMPCUT_STAMP_SIZE and
// "remote.endpoint" reads STAMPCUT_REMOTE_ENDPOINT.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	for key, val := range map[string]any{
		"catalog": "", "id-column": 0, "ra-column": 0, "dec-column": 0,
		"resolution": 0.0, "stamp-size": 0.0,
		"survey": d.Survey, "images": "", "weights": "",
		"output": "", "prefix": "", "ext": d.Ext, "compression": "", "clean": false,
		"log-file": d.LogFile, "report-file": d.ReportFile,
		"threads": d.Threads, "check-size": d.CheckSize, "verbose": false,
		"memory-limit": int64(0), "max-open-tiles": int64(0), "io-limit": int64(0),
		"cache-size": d.CacheSize, "retries": d.Retries,
		"metrics-file": "", "result-table": "", "run-id": "", "resume": false,
		"remote.endpoint": "", "remote.region": "", "remote.access-key": "",
		"remote.secret-key": "", "remote.use-ssl": d.Remote.UseSSL,
	} {
		v.SetDefault(key, val)
	}
	return v
}

// Load reads the optional YAML file at path into v and decodes the result.
// Validate is not called.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate reports all missing required options together, then the first
// invalid value.
func (c *Config) Validate() error {
	var missing []string
	for name, set := range map[string]bool{
		"catalog":    c.Catalog != "",
		"ra-column":  c.RAColumn != 0,
		"dec-column": c.DecColumn != 0,
		"resolution": c.Resolution != 0,
		"stamp-size": c.StampSize != 0,
		"images":     c.Images != "",
		"output":     c.Output != "",
	} {
		if !set {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingOptionsError{Options: missing}
	}

	switch {
	case c.RAColumn < 0 || c.DecColumn < 0 || c.IDColumn < 0:
		return fmt.Errorf("%w: column numbers count from 1", ErrInvalidOption)
	case c.Resolution < 0:
		return fmt.Errorf("%w: resolution %g", ErrInvalidOption, c.Resolution)
	case c.StampSize < 0:
		return fmt.Errorf("%w: stamp-size %g", ErrInvalidOption, c.StampSize)
	case c.CheckSize < 0:
		return fmt.Errorf("%w: check-size %d", ErrInvalidOption, c.CheckSize)
	case c.Threads < 1:
		return fmt.Errorf("%w: threads %d", ErrInvalidOption, c.Threads)
	case c.Resume && (c.ResultTable == "" || c.RunID == ""):
		return fmt.Errorf("%w: resume needs result-table and run-id", ErrInvalidOption)
	}
	if _, err := compress.Parse(c.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if c.MemoryLimit > 0 {
		side := int64(c.Side())
		if need := c.CacheReserve() + side*side*4; c.MemoryLimit < need {
			return fmt.Errorf("%w: memory-limit %d below cache reserve plus one stamp canvas (%d)", ErrInvalidOption, c.MemoryLimit, need)
		}
	}
	return nil
}

// CacheReserve returns the bytes the survey block cache takes from
// MemoryLimit. Only remote surveys are cached.
func (c *Config) CacheReserve() int64 {
	if c.CacheSize <= 0 || !strings.Contains(c.Survey, "://") {
		return 0
	}
	return c.CacheSize
}

// Side returns the stamp side in pixels, floor(stamp/resolution), forced
// odd.
func (c *Config) Side() int {
	side := int(c.StampSize / c.Resolution)
	if side%2 == 0 {
		side++
	}
	return side
}

// Codec returns the output compression.
func (c *Config) Codec() compress.Codec {
	codec, _ := compress.Parse(c.Compression)
	return codec
}

// RAIndex returns the zero-based RA column.
func (c *Config) RAIndex() int { return c.RAColumn - 1 }

// DecIndex returns the zero-based Dec column.
func (c *Config) DecIndex() int { return c.DecColumn - 1 }

// IDIndex returns the zero-based ID column, or -1 when targets are named
// by row number.
func (c *Config) IDIndex() int { return c.IDColumn - 1 }

// AsYAML renders the configuration. The remote secret key is omitted.
func (c *Config) AsYAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
