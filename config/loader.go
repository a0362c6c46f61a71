package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/streamkit/logger"
)

// FileSystem is the slice of the filesystem the loader touches.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFS struct{}

func (osFS) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func (osFS) LoadEnv(p string) error { return godotenv.Load(p) }

// Sources names the files a load reads from. Empty means none found.
type Sources struct {
	ConfigFile string
	EnvFile    string
}

// maxEnvSplit bounds the nesting guesses made for one variable name.
const maxEnvSplit = 6

type loadOptions struct {
	fs      FileSystem
	sources Sources
}

// LoaderOption customises LoadConfig.
type LoaderOption func(*loadOptions)

// WithFileSystem replaces the OS filesystem, mostly for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(o *loadOptions) { o.fs = fs }
}

// WithConfigFile pins the YAML file instead of searching for one.
func WithConfigFile(p string) LoaderOption {
	return func(o *loadOptions) { o.sources.ConfigFile = p }
}

// WithEnvFile pins the .env file instead of searching for one.
func WithEnvFile(p string) LoaderOption {
	return func(o *loadOptions) { o.sources.EnvFile = p }
}

// Load is LoadConfig followed by ApplyDefaults and Validate.
func Load(service string, cfg Config, opts ...LoaderOption) error {
	if err := LoadConfig(service, cfg, opts...); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}

// LoadConfig fills out from the service's config.yml, its .env file and the
// process environment, in increasing order of precedence. Missing files are
// not an error.
func LoadConfig(service string, out interface{}, opts ...LoaderOption) error {
	o := loadOptions{fs: osFS{}}
	for _, opt := range opts {
		opt(&o)
	}
	src := Locate(o.fs, service, o.sources)

	v := viper.New()
	if src.ConfigFile != "" && o.fs.Exists(src.ConfigFile) {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", src.ConfigFile, err)
		}
	}
	if src.EnvFile != "" && o.fs.Exists(src.EnvFile) {
		if err := o.fs.LoadEnv(src.EnvFile); err != nil {
			logger.Warn("Skipping unreadable env file", map[string]interface{}{
				"file":  src.EnvFile,
				logger.FieldError: err.Error(),
			})
		}
	}
	v.AutomaticEnv()
	overlayEnv(v, os.Environ())

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: decode %s settings: %w", service, err)
	}
	return nil
}

// Locate fills the blanks in pinned by searching the usual places relative
// to the working directory: cmd/<service>, config/ and the current dir.
// Services named like "acme-streamserve" are also searched as "streamserve".
func Locate(fs FileSystem, service string, pinned Sources) Sources {
	names := []string{service}
	if i := strings.LastIndex(service, "-"); i >= 0 && i < len(service)-1 {
		names = append(names, service[i+1:])
	}

	if pinned.ConfigFile == "" {
		var candidates []string
		for _, up := range []string{".", "..", "../.."} {
			for _, n := range names {
				candidates = append(candidates, path.Join(up, "cmd", n, "config.yml"))
			}
		}
		candidates = append(candidates, "config/config.yml", "../config/config.yml", "config.yml")
		pinned.ConfigFile = firstExisting(fs, candidates)
	}

	if pinned.EnvFile == "" {
		var dirs []string
		for _, n := range names {
			for _, d := range []string{"cmd/" + n, "config/" + n, "config", "."} {
				dirs = append(dirs, d, path.Join("..", d), path.Join("../..", d))
			}
		}
		var candidates []string
		for _, file := range []string{".env." + service, ".env"} {
			for _, d := range dirs {
				candidates = append(candidates, path.Join(d, file))
			}
		}
		pinned.EnvFile = firstExisting(fs, candidates)
	}
	return pinned
}

func firstExisting(fs FileSystem, candidates []string) string {
	for _, c := range candidates {
		if fs.Exists(c) {
			return c
		}
	}
	return ""
}

// overlayEnv sets every KEY=value pair under each nested key the name could
// stand for, so STREAM_BUFFER_SIZE reaches stream.buffer_size without an
// explicit binding.
func overlayEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		for _, k := range envKeys(key) {
			v.Set(k, value)
		}
	}
}

// envKeys lists the viper keys an environment variable name may map to.
// Each underscore is either kept or turned into a nesting dot; names with
// more than maxEnvSplit segments only get the flat and fully nested forms.
func envKeys(name string) []string {
	lower := strings.ToLower(name)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 || strings.Contains(lower, "__") || lower[0] == '_' || lower[len(lower)-1] == '_' {
		return []string{lower}
	}
	if len(parts) > maxEnvSplit {
		return []string{strings.Join(parts, "_"), strings.Join(parts, ".")}
	}

	gaps := len(parts) - 1
	keys := make([]string, 0, 1<<gaps)
	var b strings.Builder
	for mask := 0; mask < 1<<gaps; mask++ {
		b.Reset()
		b.WriteString(parts[0])
		for i := 1; i < len(parts); i++ {
			if mask&(1<<(i-1)) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(parts[i])
		}
		keys = append(keys, b.String())
	}
	return keys
}
