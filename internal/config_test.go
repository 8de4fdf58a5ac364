package internal_test

import (
	"testing"
	"time"

	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/go-libs/match"
	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/storage"
)

var handlerEnv = []string{
	internal.EnvEngineHost,
	internal.EnvEnginePort,
	internal.EnvEngineExecutionTimeout,
	internal.EnvEnginePrimaryOutput,
	internal.EnvScratchDir,
	internal.EnvWorkflowDir,
	internal.EnvDownloadTimeout,
	internal.EnvS3Bucket,
	internal.EnvS3Prefix,
	internal.EnvS3Endpoint,
	internal.EnvS3PresignTTL,
	internal.EnvS3Region,
	internal.EnvS3AccessKeyID,
	internal.EnvS3SecretAccessKey,
	internal.EnvMetricsPort,
}

func setDatabaseEnv(e exam.E) {
	exam.SetEnv(e, internal.EnvDatabaseHost, "db-host")
	exam.SetEnv(e, internal.EnvDatabasePort, "5432")
	exam.SetEnv(e, internal.EnvDatabaseUser, "db-user")
	exam.SetEnv(e, internal.EnvDatabasePassword, "db-password")
	exam.SetEnv(e, internal.EnvDatabaseName, "db-name")
}

func wantDatabase() *internal.DatabaseConfig {
	return &internal.DatabaseConfig{
		Host:     "db-host",
		Port:     5432,
		User:     "db-user",
		Password: "db-password",
		Name:     "db-name",
	}
}

func TestServerConfig(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()

	e.Run("NewServerConfigFromEnv", func(e exam.E) {
		exam.SetEnv(e, internal.EnvServerPort, "80")
		setDatabaseEnv(e)

		tests := []struct {
			loc            exam.Loc
			name           string
			envVarsToSet   map[string]string
			envVarsToClear []string
			wantConfig     *internal.ServerConfig
			wantPanic      error
		}{
			{
				loc:  exam.Here(),
				name: "All environment variables set correctly",
				wantConfig: &internal.ServerConfig{
					Port:     80,
					Database: wantDatabase(),
				},
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_SERVER_PORT",
				envVarsToClear: []string{internal.EnvServerPort},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
			{
				loc:          exam.Here(),
				name:         "Non-integer VG_SERVER_PORT",
				envVarsToSet: map[string]string{internal.EnvServerPort: "not-an-int"},
				wantPanic:    internal.ErrPanicEnvNotInt,
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_DB_HOST",
				envVarsToClear: []string{internal.EnvDatabaseHost},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
			{
				loc:          exam.Here(),
				name:         "Non-integer VG_DB_PORT",
				envVarsToSet: map[string]string{internal.EnvDatabasePort: "not-an-int"},
				wantPanic:    internal.ErrPanicEnvNotInt,
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_DB_USER",
				envVarsToClear: []string{internal.EnvDatabaseUser},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_DB_PASSWORD",
				envVarsToClear: []string{internal.EnvDatabasePassword},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_DB_NAME",
				envVarsToClear: []string{internal.EnvDatabaseName},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
		}
		for _, tt := range tests {
			e.Run(tt.name, func(e exam.E) {
				e.Log("Running test at", tt.loc)

				for k, v := range tt.envVarsToSet {
					exam.SetEnv(e, k, v)
				}
				for _, k := range tt.envVarsToClear {
					exam.ClearEnv(e, k)
				}

				if tt.wantPanic != nil {
					exam.PanicWith(e, env, match.As[error](match.ErrorIs(tt.wantPanic)), func() {
						internal.NewServerConfigFromEnv()
					})
				} else {
					gotConfig := internal.NewServerConfigFromEnv()
					exam.Equal(e, env, tt.wantConfig, gotConfig)
				}
			})
		}
	})
}

func TestWorkerConfig(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()

	e.Run("NewWorkerConfigFromEnv", func(e exam.E) {
		setDatabaseEnv(e)
		for _, k := range handlerEnv {
			exam.ClearEnv(e, k)
		}

		tests := []struct {
			loc            exam.Loc
			name           string
			envVarsToSet   map[string]string
			envVarsToClear []string
			wantConfig     *internal.WorkerConfig
			wantPanic      error
		}{
			{
				loc:  exam.Here(),
				name: "Defaults",
				wantConfig: &internal.WorkerConfig{
					Database: wantDatabase(),
					Handler: &internal.HandlerConfig{
						Engine: &internal.EngineConfig{
							Host: "127.0.0.1",
							Port: 8188,
						},
						ScratchDir:      internal.DefaultScratchDir,
						DownloadTimeout: 5 * time.Minute,
					},
				},
			},
			{
				loc:  exam.Here(),
				name: "Everything set",
				envVarsToSet: map[string]string{
					internal.EnvEngineHost:             "comfy",
					internal.EnvEnginePort:             "9000",
					internal.EnvEngineExecutionTimeout: "45m",
					internal.EnvEnginePrimaryOutput:    "75",
					internal.EnvScratchDir:             "/scratch",
					internal.EnvWorkflowDir:            "/workflows",
					internal.EnvDownloadTimeout:        "30s",
					internal.EnvS3Bucket:               "videos",
					internal.EnvS3Prefix:               "out",
					internal.EnvS3Endpoint:             "http://minio:9000",
					internal.EnvS3PresignTTL:           "10m",
					internal.EnvS3Region:               "us-west-2",
					internal.EnvS3AccessKeyID:          "minio",
					internal.EnvS3SecretAccessKey:      "minio-secret",
					internal.EnvMetricsPort:            "9090",
				},
				wantConfig: &internal.WorkerConfig{
					Database: wantDatabase(),
					Handler: &internal.HandlerConfig{
						Engine: &internal.EngineConfig{
							Host:             "comfy",
							Port:             9000,
							ExecutionTimeout: 45 * time.Minute,
							PrimaryOutput:    "75",
						},
						ScratchDir:      "/scratch",
						WorkflowDir:     "/workflows",
						DownloadTimeout: 30 * time.Second,
						S3: &storage.S3Config{
							Bucket:          "videos",
							Prefix:          "out",
							Endpoint:        "http://minio:9000",
							Region:          "us-west-2",
							PresignTTL:      10 * time.Minute,
							AccessKeyID:     "minio",
							SecretAccessKey: "minio-secret",
						},
					},
					MetricsPort: 9090,
				},
			},
			{
				loc:            exam.Here(),
				name:           "Missing VG_DB_HOST",
				envVarsToClear: []string{internal.EnvDatabaseHost},
				wantPanic:      internal.ErrPanicEnvNotSet,
			},
			{
				loc:          exam.Here(),
				name:         "Non-integer VG_ENGINE_PORT",
				envVarsToSet: map[string]string{internal.EnvEnginePort: "comfy"},
				wantPanic:    internal.ErrPanicEnvNotInt,
			},
			{
				loc:          exam.Here(),
				name:         "Bad VG_ENGINE_EXECUTION_TIMEOUT",
				envVarsToSet: map[string]string{internal.EnvEngineExecutionTimeout: "ten minutes"},
				wantPanic:    internal.ErrPanicEnvNotDuration,
			},
			{
				loc:          exam.Here(),
				name:         "Non-integer VG_METRICS_PORT",
				envVarsToSet: map[string]string{internal.EnvMetricsPort: "x"},
				wantPanic:    internal.ErrPanicEnvNotInt,
			},
		}
		for _, tt := range tests {
			e.Run(tt.name, func(e exam.E) {
				e.Log("Running test at", tt.loc)

				for k, v := range tt.envVarsToSet {
					exam.SetEnv(e, k, v)
				}
				for _, k := range tt.envVarsToClear {
					exam.ClearEnv(e, k)
				}

				if tt.wantPanic != nil {
					exam.PanicWith(e, env, match.As[error](match.ErrorIs(tt.wantPanic)), func() {
						internal.NewWorkerConfigFromEnv()
					})
				} else {
					gotConfig := internal.NewWorkerConfigFromEnv()
					exam.Equal(e, env, tt.wantConfig, gotConfig)
				}
			})
		}
	})
}
