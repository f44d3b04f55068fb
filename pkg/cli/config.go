package cli

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/foofork/riptidecrawler/go/pkg/riptide"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".riptide"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config is the configuration of a CLI app: a set of named contexts and the
// one currently in use.
type Config struct {
	AppName string `yaml:"-"`

	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context is one RipTide server profile.
type Context struct {
	Name string `yaml:"name"`

	// BaseURL is the HTTP API root. Empty uses riptide.DefaultBaseURL.
	BaseURL string `yaml:"base_url,omitempty"`

	// WSURL overrides the WebSocket endpoint derived from BaseURL.
	WSURL string `yaml:"ws_url,omitempty"`

	// Timeout is the WebSocket handshake timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// Headers are sent with every request, e.g. Authorization.
	Headers map[string]string `yaml:"headers,omitempty"`

	UserAgent string `yaml:"user_agent,omitempty"`

	// DecodePolicy is one of default, fail-fast, inline, repair.
	DecodePolicy string `yaml:"decode_policy,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context after validating it.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	if err := ctx.Validate(); err != nil {
		return err
	}
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ResolveContext returns the named context. An empty name resolves to the
// current context, or to an empty context using library defaults when none
// is set.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name != "" {
		return c.GetContext(name)
	}
	if c.CurrentContext == "" {
		return &Context{}, nil
	}
	return c.GetContext(c.CurrentContext)
}

// ListContexts returns all context names in sorted order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks the fields a client would reject.
func (ctx *Context) Validate() error {
	if ctx.Timeout < 0 {
		return fmt.Errorf("context %q: timeout must not be negative", ctx.Name)
	}
	if _, err := riptide.ParseDecodePolicy(ctx.DecodePolicy); err != nil {
		return fmt.Errorf("context %q: %w", ctx.Name, err)
	}
	return nil
}

// ClientOptions converts the context into riptide client options.
func (ctx *Context) ClientOptions() ([]riptide.Option, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	var opts []riptide.Option
	if ctx.BaseURL != "" {
		opts = append(opts, riptide.WithBaseURL(ctx.BaseURL))
	}
	if ctx.WSURL != "" {
		opts = append(opts, riptide.WithWebSocketURL(ctx.WSURL))
	}
	if ctx.Timeout > 0 {
		opts = append(opts, riptide.WithTimeout(time.Duration(ctx.Timeout)*time.Second))
	}
	if ctx.UserAgent != "" {
		opts = append(opts, riptide.WithUserAgent(ctx.UserAgent))
	}
	for _, k := range slices.Sorted(maps.Keys(ctx.Headers)) {
		opts = append(opts, riptide.WithHeader(k, ctx.Headers[k]))
	}
	if ctx.DecodePolicy != "" {
		p, _ := riptide.ParseDecodePolicy(ctx.DecodePolicy)
		opts = append(opts, riptide.WithDecodePolicy(p))
	}
	return opts, nil
}

// Redacted returns a copy of the context safe for display: header values
// are masked.
func (ctx *Context) Redacted() *Context {
	out := *ctx
	if len(ctx.Headers) > 0 {
		out.Headers = make(map[string]string, len(ctx.Headers))
		for k, v := range ctx.Headers {
			out.Headers[k] = MaskSecret(v)
		}
	}
	return &out
}

// MaskSecret masks a credential for display
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
