package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7340"
	DefaultDBFileName = ".izakaya.db"
	DefaultLogLevel   = "info"

	BlobBackendLocal  = "local"
	BlobBackendS3     = "s3"
	BlobBackendMemory = "memory"

	DefaultBlobBackend = BlobBackendLocal
	DefaultBlobBaseURL = "/blobs"

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024

	DefaultReconcileConcurrency = 4
	DefaultReconcileOpTimeout   = 30 * time.Second
	DefaultSweepBatchSize       = 500

	configFileName           = ".izakaya.toml"
	configDirEnvKey          = "IZAKAYA_CONFIG_DIR"
	trustProjectConfigEnvKey = "IZAKAYA_TRUST_PROJECT_CONFIG"
)

// S3Config configures the object-storage blob backend.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Prefix          string `toml:"prefix"`
	PublicBaseURL   string `toml:"public_base_url"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// BlobConfig selects and configures the blob store backend.
type BlobConfig struct {
	Backend string   `toml:"backend"`
	Root    string   `toml:"root"`
	BaseURL string   `toml:"base_url"`
	S3      S3Config `toml:"s3"`
}

// UploadConfig bounds multipart photo uploads.
type UploadConfig struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
}

// ReconcileConfig tunes attachment reconciliation fan-out and timeouts.
type ReconcileConfig struct {
	Concurrency    int           `toml:"concurrency"`
	OpTimeout      time.Duration `toml:"op_timeout"`
	SweepBatchSize int           `toml:"sweep_batch_size"`
}

// Config defines runtime configuration for izakaya.
type Config struct {
	APIURL                   string          `toml:"api_url"`
	DBPath                   string          `toml:"db_path"`
	LogLevel                 string          `toml:"log_level"`
	Blobs                    BlobConfig      `toml:"blobs"`
	Uploads                  UploadConfig    `toml:"uploads"`
	Reconcile                ReconcileConfig `toml:"reconcile"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Blobs: BlobConfig{
			Backend: DefaultBlobBackend,
			BaseURL: DefaultBlobBaseURL,
		},
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
			AllowedMediaTypes:  []string{"image/*"},
		},
		Reconcile: ReconcileConfig{
			Concurrency:    DefaultReconcileConcurrency,
			OpTimeout:      DefaultReconcileOpTimeout,
			SweepBatchSize: DefaultSweepBatchSize,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"blobs.backend",
	"blobs.root",
	"blobs.base_url",
	"blobs.s3.bucket",
	"blobs.s3.region",
	"blobs.s3.endpoint",
	"blobs.s3.prefix",
	"blobs.s3.public_base_url",
	"blobs.s3.use_path_style",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
	"uploads.allowed_media_types",
	"reconcile.concurrency",
	"reconcile.op_timeout",
	"reconcile.sweep_batch_size",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.base_url":
		return c.Blobs.BaseURL, nil
	case "blobs.s3.bucket":
		return c.Blobs.S3.Bucket, nil
	case "blobs.s3.region":
		return c.Blobs.S3.Region, nil
	case "blobs.s3.endpoint":
		return c.Blobs.S3.Endpoint, nil
	case "blobs.s3.prefix":
		return c.Blobs.S3.Prefix, nil
	case "blobs.s3.public_base_url":
		return c.Blobs.S3.PublicBaseURL, nil
	case "blobs.s3.use_path_style":
		return strconv.FormatBool(c.Blobs.S3.UsePathStyle), nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	case "reconcile.concurrency":
		return strconv.Itoa(c.Reconcile.Concurrency), nil
	case "reconcile.op_timeout":
		return c.Reconcile.OpTimeout.String(), nil
	case "reconcile.sweep_batch_size":
		return strconv.Itoa(c.Reconcile.SweepBatchSize), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalize()

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"IZAKAYA_API_URL", &cfg.APIURL},
		{"IZAKAYA_DB", &cfg.DBPath},
		{"IZAKAYA_LOG_LEVEL", &cfg.LogLevel},
		{"IZAKAYA_BLOB_BACKEND", &cfg.Blobs.Backend},
		{"IZAKAYA_BLOB_ROOT", &cfg.Blobs.Root},
		{"IZAKAYA_S3_BUCKET", &cfg.Blobs.S3.Bucket},
		{"IZAKAYA_S3_REGION", &cfg.Blobs.S3.Region},
		{"IZAKAYA_S3_ENDPOINT", &cfg.Blobs.S3.Endpoint},
		{"IZAKAYA_S3_ACCESS_KEY_ID", &cfg.Blobs.S3.AccessKeyID},
		{"IZAKAYA_S3_SECRET_ACCESS_KEY", &cfg.Blobs.S3.SecretAccessKey},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.env)); value != "" {
			*o.dst = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("IZAKAYA_ALLOWED_MEDIA_TYPES")); raw != "" {
		cfg.Uploads.AllowedMediaTypes = splitCSV(raw)
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "reconcile.concurrency", "reconcile.sweep_batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "reconcile.op_timeout":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return parsed.String(), nil
	case "blobs.s3.use_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "blobs.backend":
		switch value {
		case BlobBackendLocal, BlobBackendS3, BlobBackendMemory:
			return value, nil
		default:
			return nil, fmt.Errorf("%s must be one of %s, %s, %s", key, BlobBackendLocal, BlobBackendS3, BlobBackendMemory)
		}
	case "uploads.allowed_media_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = DefaultBlobBackend
	}
	if strings.TrimSpace(c.Blobs.BaseURL) == "" {
		c.Blobs.BaseURL = DefaultBlobBaseURL
	}
	if c.Blobs.Root == "" && c.DBPath != "" {
		c.Blobs.Root = filepath.Join(filepath.Dir(c.DBPath), ".izakaya", "blobs")
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Reconcile.Concurrency <= 0 {
		c.Reconcile.Concurrency = DefaultReconcileConcurrency
	}
	if c.Reconcile.OpTimeout <= 0 {
		c.Reconcile.OpTimeout = DefaultReconcileOpTimeout
	}
	if c.Reconcile.SweepBatchSize <= 0 {
		c.Reconcile.SweepBatchSize = DefaultSweepBatchSize
	}
	c.Uploads.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Uploads.AllowedMediaTypes)
}

// normalizeConfiguredMediaTypes lowercases, dedupes and sorts media types.
// Wildcard subtypes such as "image/*" are kept as-is.
func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		normalized := raw
		if !strings.HasSuffix(raw, "/*") {
			parsed, _, err := mime.ParseMediaType(raw)
			if err != nil {
				continue
			}
			normalized = strings.ToLower(strings.TrimSpace(parsed))
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
