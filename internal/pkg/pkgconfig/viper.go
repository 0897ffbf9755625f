package pkgconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. GOLEDGER_LOG_LEVEL
// overrides "log.level".
const EnvPrefix = "GOLEDGER"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

type options struct {
	defaults map[string]any
	optional bool
	watch    bool
}

// Option customizes NewViper.
type Option func(*options)

// WithDefaults registers fallback values for keys missing from the file.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		o.defaults = defaults
	}
}

// Optional tolerates an empty path or a missing file; defaults and
// environment overrides still apply.
func Optional() Option {
	return func(o *options) {
		o.optional = true
	}
}

// WithWatch reloads the file when it changes on disk.
func WithWatch() Option {
	return func(o *options) {
		o.watch = true
	}
}

// NewViper loads configuration from the given file path and returns a Viper-backed Config.
//
// The config file type is inferred by Viper from the filename extension.
func NewViper(pathFile string, opts ...Option) (*Viper, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if pathFile == "" {
		if o.optional {
			return &Viper{v: v}, nil
		}
		return nil, errors.New("config: empty file path")
	}

	v.SetConfigFile(pathFile)
	if err := v.ReadInConfig(); err != nil {
		if o.optional && errors.Is(err, os.ErrNotExist) {
			return &Viper{v: v}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", pathFile, err)
	}

	if o.watch {
		v.WatchConfig()
	}

	return &Viper{v: v}, nil
}

// GetInt returns the value for key as int64.
func (vc *Viper) GetInt(key string) int64 {
	return vc.v.GetInt64(key)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

// GetArray returns the value for key split by commas. Empty items are dropped.
func (vc *Viper) GetArray(key string) []string {
	raw := strings.Split(vc.v.GetString(key), ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsSet reports whether key has a value from any source, defaults included.
func (vc *Viper) IsSet(key string) bool {
	return vc.v.IsSet(key)
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	return nil
}
