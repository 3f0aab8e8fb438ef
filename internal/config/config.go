package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver string `yaml:"driver"` // memory | fs | postgres
		DSN    string `yaml:"dsn"`
		FSRoot string `yaml:"fs_root"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Trust struct {
		ClientsFile string `yaml:"clients_file"`
		ReloadTTL   string `yaml:"reload_ttl"`
	} `yaml:"trust"`

	Interaction struct {
		TTL string `yaml:"ttl"`
	} `yaml:"interaction"`

	Auth struct {
		// Issuer esperado en los service tokens del runtime OIDC.
		Issuer string `yaml:"issuer"`
		// JWTPublicKey: Ed25519 pública en base64, verifica los bearer del runtime.
		JWTPublicKey string `yaml:"jwt_public_key"`
		// AdminAPIKeyHash: PHC argon2id contra el que se valida X-Admin-API-Key.
		AdminAPIKeyHash string `yaml:"admin_api_key_hash"`
	} `yaml:"auth"`

	Security struct {
		// SecretBoxKey: base64(32 bytes); si está, las sesiones van cifradas al cache.
		SecretBoxKey string `yaml:"secretbox_key"`
	} `yaml:"security"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.FSRoot == "" {
		c.Storage.FSRoot = "./data/consentgate"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Trust.ReloadTTL == "" {
		c.Trust.ReloadTTL = "30s"
	}
	if c.Interaction.TTL == "" {
		c.Interaction.TTL = "10m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Overrides por env
	c.applyEnvOverrides()

	// validate string durations
	for name, s := range map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"trust.reload_ttl":         c.Trust.ReloadTTL,
		"interaction.ttl":          c.Interaction.TTL,
	} {
		if _, err := time.ParseDuration(s); err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// Normalizar clients_file relativo respecto al directorio del YAML
	if p := strings.TrimSpace(c.Trust.ClientsFile); p != "" && !filepath.IsAbs(p) {
		c.Trust.ClientsFile = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}

	return &c, nil
}

// Dur parsea una duración ya validada por Load.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_FS_ROOT"); ok {
		c.Storage.FSRoot = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// TRUST
	if v, ok := getEnvStr("TRUST_CLIENTS_FILE"); ok {
		c.Trust.ClientsFile = v
	}
	if v, ok := getEnvStr("TRUST_RELOAD_TTL"); ok {
		c.Trust.ReloadTTL = v
	}

	// INTERACTION
	if v, ok := getEnvStr("INTERACTION_TTL"); ok {
		c.Interaction.TTL = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvStr("AUTH_JWT_PUBLIC_KEY"); ok {
		c.Auth.JWTPublicKey = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY_HASH"); ok {
		c.Auth.AdminAPIKeyHash = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_KEY"); ok {
		c.Security.SecretBoxKey = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate chequea valores críticos de configuración.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "fs", "postgres":
	default:
		return fmt.Errorf("config: storage.driver inválido %q (memory|fs|postgres)", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.dsn requerido con driver postgres")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind inválido %q (memory|redis)", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.redis.addr requerido con kind redis")
	}
	// En prod el canal compartido (redis) exige sesiones cifradas.
	if strings.EqualFold(c.App.Env, "prod") && c.Cache.Kind == "redis" && c.Security.SecretBoxKey == "" {
		return fmt.Errorf("config: security.secretbox_key requerido en prod con cache redis")
	}
	return nil
}
