// Package config holds the immutable settings of the development server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Compiled-in defaults.
const (
	DefaultPort            = 3001
	DefaultName            = "The Daily David - Development Server"
	DefaultMaxConns        = 1
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	// ErrInvalidPort is returned when the port is outside 1..65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrNotDirectory is returned when the root is not an existing directory.
	ErrNotDirectory = errors.New("root is not a directory")
	// ErrUnsupportedFormat is returned by Load for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrUnknownKey is returned by Load when the file sets a key Config does not have.
	ErrUnknownKey = errors.New("unknown config key")
)

// executable is swapped out in tests.
var executable = os.Executable

// Config describes what the server serves and where. It is built once at
// startup and passed by value; nothing mutates it afterwards.
type Config struct {
	// Port is the TCP port to listen on.
	Port int `toml:"port" yaml:"port"`
	// Host is the bind host. Empty means all interfaces.
	Host string `toml:"host" yaml:"host"`
	// Root is the directory exposed at "/".
	Root string `toml:"root" yaml:"root"`
	// Name is the heading printed in the startup banner.
	Name string `toml:"name" yaml:"name"`
	// MaxConns caps the number of connections served at once. 0 means no cap.
	MaxConns int `toml:"max_conns" yaml:"max_conns"`
	// ShutdownTimeout bounds how long shutdown waits for in-flight requests.
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns the compiled-in configuration. Root is the directory that
// contains the running executable.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		Root:            executableDir(),
		Name:            DefaultName,
		MaxConns:        DefaultMaxConns,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func executableDir() string {
	exe, err := executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Load reads a TOML or YAML file on top of Default. The format is picked by
// extension. A relative root in the file is taken relative to the file.
func Load(path string) (Config, error) {
	cfg := Default()
	fileRoot := cfg.Root
	cfg.Root = ""

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			// An empty document is a valid "use the defaults" file.
			if !errors.Is(err, io.EOF) {
				if unknown := unknownYAMLFields(err); len(unknown) > 0 {
					return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(unknown, "; "))
				}
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	default:
		return Config{}, fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
	}

	switch {
	case cfg.Root == "":
		cfg.Root = fileRoot
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return cfg, nil
}

// unknownYAMLFields picks the KnownFields violations out of a decode error.
// Other type errors, such as a string where a number belongs, are not included.
func unknownYAMLFields(err error) []string {
	var typeErr *yaml.TypeError
	if !errors.As(err, &typeErr) {
		return nil
	}
	var unknown []string
	for _, e := range typeErr.Errors {
		if strings.Contains(e, "not found in type") {
			unknown = append(unknown, e)
		}
	}
	return unknown
}

// Resolve makes Root absolute and validates every field.
func (c Config) Resolve() (Config, error) {
	if c.Port < 1 || c.Port > 65535 {
		return Config{}, fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.MaxConns < 0 {
		return Config{}, fmt.Errorf("max_conns must not be negative, got %d", c.MaxConns)
	}
	if c.ShutdownTimeout < 0 {
		return Config{}, fmt.Errorf("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout)
	}
	if c.Root == "" {
		c.Root = "."
	}

	abs, err := filepath.Abs(c.Root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve root %q: %w", c.Root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrNotDirectory, abs, err)
	}
	if !info.IsDir() {
		return Config{}, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	c.Root = abs

	if c.Name == "" {
		c.Name = DefaultName
	}
	return c, nil
}

// Addr is the listen address, host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the address a browser on this machine should open.
func (c Config) URL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}
