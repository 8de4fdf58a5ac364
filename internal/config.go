package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/krelinga/video-generator/internal/comfy"
	"github.com/krelinga/video-generator/internal/storage"
)

var (
	ErrPanicEnvNotSet      = errors.New("environment variable not set")
	ErrPanicEnvNotInt      = errors.New("environment variable is not an integer")
	ErrPanicEnvNotDuration = errors.New("environment variable is not a duration")
)

const (
	EnvServerPort       = "VG_SERVER_PORT"
	EnvDatabaseHost     = "VG_DB_HOST"
	EnvDatabasePort     = "VG_DB_PORT"
	EnvDatabaseUser     = "VG_DB_USER"
	EnvDatabasePassword = "VG_DB_PASSWORD"
	EnvDatabaseName     = "VG_DB_NAME"

	EnvEngineHost             = "VG_ENGINE_HOST"
	EnvEnginePort             = "VG_ENGINE_PORT"
	EnvEngineExecutionTimeout = "VG_ENGINE_EXECUTION_TIMEOUT"
	EnvEnginePrimaryOutput    = "VG_ENGINE_PRIMARY_OUTPUT"
	EnvScratchDir             = "VG_SCRATCH_DIR"
	EnvWorkflowDir            = "VG_WORKFLOW_DIR"
	EnvDownloadTimeout        = "VG_DOWNLOAD_TIMEOUT"

	EnvS3Bucket     = "VG_S3_BUCKET"
	EnvS3Prefix     = "VG_S3_PREFIX"
	EnvS3Endpoint   = "VG_S3_ENDPOINT"
	EnvS3PresignTTL = "VG_S3_PRESIGN_TTL"
	EnvS3Region     = "VG_S3_REGION"

	// Static credentials; the default AWS credential chain is used when
	// either is unset.
	EnvS3AccessKeyID     = "VG_S3_ACCESS_KEY_ID"
	EnvS3SecretAccessKey = "VG_S3_SECRET_ACCESS_KEY"

	EnvMetricsPort = "VG_METRICS_PORT"
)

const (
	DefaultEngineHost      = "127.0.0.1"
	DefaultScratchDir      = "/tmp/video-generator"
	DefaultDownloadTimeout = 5 * time.Minute
)

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	Port     int
	Database *DatabaseConfig
}

// WorkerConfig contains configuration for the worker.
type WorkerConfig struct {
	Database *DatabaseConfig
	Handler  *HandlerConfig
	// MetricsPort serves /metrics when non-zero.
	MetricsPort int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// HandlerConfig configures the generation handler shared by the worker and
// the oneshot command.
type HandlerConfig struct {
	Engine          *EngineConfig
	ScratchDir      string
	WorkflowDir     string
	DownloadTimeout time.Duration
	// S3 is nil unless a bucket is configured.
	S3 *storage.S3Config
}

type EngineConfig struct {
	Host             string
	Port             int
	ExecutionTimeout time.Duration
	PrimaryOutput    string
}

func mustGetenv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotSet, key))
	}
	return value
}

func mustGetenvAtoi(key string) int {
	valueStr := mustGetenv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotInt, key))
	}
	return value
}

func getenvDefault(key, def string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return def
}

func getenvAtoiDefault(key string, def int) int {
	if _, ok := os.LookupEnv(key); !ok {
		return def
	}
	return mustGetenvAtoi(key)
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	valueStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		panic(fmt.Errorf("%w: %q", ErrPanicEnvNotDuration, key))
	}
	return value
}

func newDatabaseConfigFromEnv() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     mustGetenv(EnvDatabaseHost),
		Port:     mustGetenvAtoi(EnvDatabasePort),
		User:     mustGetenv(EnvDatabaseUser),
		Password: mustGetenv(EnvDatabasePassword),
		Name:     mustGetenv(EnvDatabaseName),
	}
}

func NewServerConfigFromEnv() *ServerConfig {
	return &ServerConfig{
		Port:     mustGetenvAtoi(EnvServerPort),
		Database: newDatabaseConfigFromEnv(),
	}
}

func NewWorkerConfigFromEnv() *WorkerConfig {
	return &WorkerConfig{
		Database:    newDatabaseConfigFromEnv(),
		Handler:     NewHandlerConfigFromEnv(),
		MetricsPort: getenvAtoiDefault(EnvMetricsPort, 0),
	}
}

// NewHandlerConfigFromEnv reads the engine, scratch and storage settings.
// None of them are required.
func NewHandlerConfigFromEnv() *HandlerConfig {
	cfg := &HandlerConfig{
		Engine: &EngineConfig{
			Host:             getenvDefault(EnvEngineHost, DefaultEngineHost),
			Port:             getenvAtoiDefault(EnvEnginePort, comfy.DefaultPort),
			ExecutionTimeout: getenvDurationDefault(EnvEngineExecutionTimeout, 0),
			PrimaryOutput:    os.Getenv(EnvEnginePrimaryOutput),
		},
		ScratchDir:      getenvDefault(EnvScratchDir, DefaultScratchDir),
		WorkflowDir:     os.Getenv(EnvWorkflowDir),
		DownloadTimeout: getenvDurationDefault(EnvDownloadTimeout, DefaultDownloadTimeout),
	}
	if bucket := os.Getenv(EnvS3Bucket); bucket != "" {
		cfg.S3 = &storage.S3Config{
			Bucket:          bucket,
			Prefix:          os.Getenv(EnvS3Prefix),
			Endpoint:        os.Getenv(EnvS3Endpoint),
			Region:          os.Getenv(EnvS3Region),
			PresignTTL:      getenvDurationDefault(EnvS3PresignTTL, storage.DefaultPresignTTL),
			AccessKeyID:     os.Getenv(EnvS3AccessKeyID),
			SecretAccessKey: os.Getenv(EnvS3SecretAccessKey),
		}
	}
	return cfg
}
