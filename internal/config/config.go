package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	ConnectTimeoutSec  int
	ApplicationName    string
}

// MinIOConfig holds object storage settings for MinIO.
// When enabled, stored variants are mirrored into the bucket under Prefix.
type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	PublicURL string
	UseSSL    bool
}

// ImagesConfig locates the image store and tells which application owns it.
type ImagesConfig struct {
	// AppID identifies this process; AppOwner is the application serving the image directory
	// directly. Every other application publishes the directory and uses the published URL.
	AppID    string
	AppOwner string
	// RootAlias names the path alias of the directory holding ImagesFolder.
	RootAlias    string
	ImagesFolder string
	BaseURL      string
	// Aliases maps alias names (without "@") to absolute directories.
	Aliases     map[string]string
	DirMode     os.FileMode
	JPEGQuality int
	SchemaFile  string
	// SchemaWatch reloads SchemaFile when it changes.
	SchemaWatch bool
	// PublishMode is "symlink" or "bucket".
	PublishMode string
	AssetsDir   string
	AssetsURL   string
}

// TracingConfig mirrors the standard OTEL_* variables used to set up trace export.
type TracingConfig struct {
	Disabled    bool
	ServiceName string
	// Protocol is "grpc" or "http/protobuf".
	Protocol   string
	Endpoint   string
	Sampler    string
	SamplerArg string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Images   ImagesConfig
	Tracing  TracingConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			ConnectTimeoutSec:  getEnvInt("DB_CONNECT_TIMEOUT_SEC", 5),
			ApplicationName:    getEnv("DB_APPLICATION_NAME", "imagevariants"),
		},
		MinIO: MinIOConfig{
			Enabled:   getEnvBool("MINIO_ENABLED", false),
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Prefix:    getEnv("MINIO_PREFIX", ""),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Images: ImagesConfig{
			AppID:        getEnv("APP_ID", "basic"),
			AppOwner:     getEnv("IMAGES_APP_OWNER", "basic"),
			RootAlias:    getEnv("IMAGES_ROOT_ALIAS", "content"),
			ImagesFolder: getEnv("IMAGES_FOLDER", "images"),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			Aliases:      getEnvMap("PATH_ALIASES", map[string]string{"content": "./content"}),
			DirMode:      getEnvFileMode("IMAGES_DIR_MODE", 0o777),
			JPEGQuality:  getEnvInt("IMAGES_JPEG_QUALITY", 90),
			SchemaFile:   getEnv("IMAGES_SCHEMA_FILE", "schemas.yaml"),
			SchemaWatch:  getEnvBool("IMAGES_SCHEMA_WATCH", false),
			PublishMode:  getEnv("PUBLISH_MODE", "symlink"),
			AssetsDir:    getEnv("ASSETS_DIR", "./web/assets"),
			AssetsURL:    getEnv("ASSETS_URL", "/assets"),
		},
		Tracing: TracingConfig{
			Disabled:    getEnvBool("OTEL_SDK_DISABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "imagevariants"),
			Protocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Sampler:     getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
			SamplerArg:  getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvFileMode parses an octal permission such as "0755".
func getEnvFileMode(key string, def os.FileMode) os.FileMode {
	if v := os.Getenv(key); v != "" {
		m, err := strconv.ParseUint(v, 8, 32)
		if err == nil {
			return os.FileMode(m)
		}
	}
	return def
}

// getEnvMap parses "name=value,name2=value2". Malformed pairs are skipped.
func getEnvMap(key string, def map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}
