package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/km-arc/go-tenancy/framework/container"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Log       LogConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	URL   string
	Port  string
}

// ContainerConfig controls how the service container is built and how HTTP
// requests are mapped to tenants.
type ContainerConfig struct {
	ValidateScopes  bool
	ValidateOnBuild bool
	Engine          string // runtime | compiled
	TenantHeader    string
	TenantParam     string
	CaseInsensitive bool
}

type LogConfig struct {
	Level     string // debug | info | warn | error
	Verbosity int    // logr V-level enabled on top of Level
	Format    string // json | console
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	local := env("APP_ENV", "local") == "local"
	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "GoTenancy"),
			Env:   env("APP_ENV", "local"),
			Debug: envBool("APP_DEBUG", true),
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
		},
		Container: ContainerConfig{
			ValidateScopes:  envBool("CONTAINER_VALIDATE_SCOPES", local),
			ValidateOnBuild: envBool("CONTAINER_VALIDATE_ON_BUILD", local),
			Engine:          env("CONTAINER_ENGINE", "runtime"),
			TenantHeader:    env("TENANT_HEADER", "X-Tenant"),
			TenantParam:     env("TENANT_PARAM", "tenant"),
			CaseInsensitive: envBool("TENANT_CASE_INSENSITIVE", false),
		},
		Log: LogConfig{
			Level:     env("LOG_LEVEL", "info"),
			Verbosity: GetInt("LOG_VERBOSITY", 0),
			Format:    env("LOG_FORMAT", "json"),
		},
	}
}

// Options maps the container section to build options for a container keyed
// by strings, which is how tenants arrive over HTTP.
//
//	opts, err := cfg.Container.Options()
//	c, err := container.Build[string](services, opts...)
func (c ContainerConfig) Options() ([]container.Option, error) {
	kind, err := container.ParseEngineKind(c.Engine)
	if err != nil {
		return nil, fmt.Errorf("CONTAINER_ENGINE: %w", err)
	}
	opts := []container.Option{
		container.WithValidateScopes(c.ValidateScopes),
		container.WithValidateOnBuild(c.ValidateOnBuild),
		container.WithEngine(kind),
	}
	if c.CaseInsensitive {
		opts = append(opts, container.WithComparer(container.FoldCase()))
	}
	return opts, nil
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
