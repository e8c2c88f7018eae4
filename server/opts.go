package server

import (
	"flag"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/synteny/aligner"
	"github.com/grailbio/synteny/comparison"
	"github.com/grailbio/synteny/synteny"
	"github.com/spf13/viper"
)

// Opts configures the web server. The mapstructure tags are the keys of the
// optional config file; the same keys, upper-cased with "-" replaced by "_"
// and prefixed with SYNTENY_, are read from the environment.
type Opts struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`
	// StaticDir is served at "/". Empty disables static files.
	StaticDir string `mapstructure:"static-dir"`
	// UploadDir and ComparisonDir are the store directories.
	UploadDir     string `mapstructure:"upload-dir"`
	ComparisonDir string `mapstructure:"comparison-dir"`

	// Minimap2 is the aligner executable.
	Minimap2 string `mapstructure:"minimap2"`
	// Preset is the minimap2 "-x" preset.
	Preset string `mapstructure:"preset"`
	// AlignTimeout bounds one alignment.
	AlignTimeout time.Duration `mapstructure:"align-timeout"`

	// MinLength and MinIdentity filter the links of new comparisons.
	MinLength   int64   `mapstructure:"min-length"`
	MinIdentity float64 `mapstructure:"min-identity"`

	// MaxUploadBytes limits the size of one upload request.
	MaxUploadBytes int64 `mapstructure:"max-upload-bytes"`
}

// DefaultOpts are the default server options.
var DefaultOpts = Opts{
	Addr:           ":5000",
	StaticDir:      ".",
	UploadDir:      comparison.DefaultOpts.UploadDir,
	ComparisonDir:  comparison.DefaultOpts.ComparisonDir,
	Minimap2:       aligner.DefaultMinimap2.Path,
	Preset:         aligner.DefaultMinimap2.Preset,
	AlignTimeout:   aligner.DefaultMinimap2.Timeout,
	MinLength:      synteny.DefaultOpts.MinLength,
	MinIdentity:    synteny.DefaultOpts.MinIdentity,
	MaxUploadBytes: 4 << 30,
}

// envPrefix prefixes the environment variables read by LoadOpts.
const envPrefix = "SYNTENY"

// LoadOpts returns defaults overridden, in increasing order of precedence, by
// the config file at path (if path is not empty), the environment, and the
// flags in fs that were set on the command line. Flags are matched to
// options by name. The file format (YAML, JSON or TOML) is chosen by its
// extension.
func LoadOpts(path string, defaults Opts, fs *flag.FlagSet) (Opts, error) {
	v := viper.New()
	v.SetDefault("addr", defaults.Addr)
	v.SetDefault("static-dir", defaults.StaticDir)
	v.SetDefault("upload-dir", defaults.UploadDir)
	v.SetDefault("comparison-dir", defaults.ComparisonDir)
	v.SetDefault("minimap2", defaults.Minimap2)
	v.SetDefault("preset", defaults.Preset)
	v.SetDefault("align-timeout", defaults.AlignTimeout)
	v.SetDefault("min-length", defaults.MinLength)
	v.SetDefault("min-identity", defaults.MinIdentity)
	v.SetDefault("max-upload-bytes", defaults.MaxUploadBytes)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			// BindFlagValue fails only for a nil flag.
			_ = v.BindFlagValue(f.Name, flagValue{f})
		})
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Opts{}, errors.E(errors.Invalid, err, "read config", path)
		}
	}
	var opts Opts
	if err := v.Unmarshal(&opts); err != nil {
		return Opts{}, errors.E(errors.Invalid, err, "decode config", path)
	}
	if opts.MinIdentity < 0 || opts.MinIdentity > 1 {
		return Opts{}, errors.E(errors.Invalid, "min-identity must be in [0, 1]")
	}
	return opts, nil
}

// StoreOpts returns the comparison store options.
func (o Opts) StoreOpts() comparison.Opts {
	opts := comparison.DefaultOpts
	opts.UploadDir = o.UploadDir
	opts.ComparisonDir = o.ComparisonDir
	opts.Convert.MinLength = o.MinLength
	opts.Convert.MinIdentity = o.MinIdentity
	return opts
}

// Aligner returns the minimap2 runner.
func (o Opts) Aligner() aligner.Minimap2 {
	m := aligner.DefaultMinimap2
	m.Path = o.Minimap2
	m.Preset = o.Preset
	m.Timeout = o.AlignTimeout
	return m
}

// flagValue adapts a flag that was set on the command line to
// viper.FlagValue.
type flagValue struct {
	f *flag.Flag
}

func (v flagValue) HasChanged() bool    { return true }
func (v flagValue) Name() string        { return v.f.Name }
func (v flagValue) ValueString() string { return v.f.Value.String() }
func (v flagValue) ValueType() string   { return "string" }
