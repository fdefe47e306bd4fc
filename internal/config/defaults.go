package config

const (
	defaultConfigPath             = "~/.config/autoingest/config.toml"
	defaultDataDir                = "~/.local/share/autoingest"
	defaultLogDir                 = "~/.local/share/autoingest/logs"
	defaultAPIBind                = "127.0.0.1:7491"
	defaultEnvFile                = ".env"
	defaultMaxConcurrentWorkflows = 2
	defaultStopGraceSeconds       = 60
	defaultMaxRetries             = 3
	defaultIntervalSeconds        = 30
	defaultCriticalityConfig      = "~/.config/autoingest/criticality.yaml"
	defaultClassifierBaseURL      = "http://127.0.0.1:11434"
	defaultClassifierModel        = "llama3.2-vision"
	defaultClassifierTimeout      = 120
	defaultClassifierMaxDimension = 1600
	defaultClassifierJPEGQuality  = 85
	defaultUploadBucket           = "documents"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 50
	defaultLogMaxBackups          = 5
	defaultLogRetentionDays       = 30
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
			EnvFile: defaultEnvFile,
		},
		Engine: Engine{
			MaxConcurrentWorkflows: defaultMaxConcurrentWorkflows,
			StopGraceSeconds:       defaultStopGraceSeconds,
			DefaultMaxRetries:      defaultMaxRetries,
			DefaultIntervalSeconds: defaultIntervalSeconds,
			CriticalityConfig:      defaultCriticalityConfig,
		},
		Classifier: Classifier{
			BaseURL:        defaultClassifierBaseURL,
			Model:          defaultClassifierModel,
			TimeoutSeconds: defaultClassifierTimeout,
			MaxDimension:   defaultClassifierMaxDimension,
			JPEGQuality:    defaultClassifierJPEGQuality,
		},
		Upload: Upload{
			Bucket: defaultUploadBucket,
			UseSSL: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			WorkflowHalts:  true,
			WorkflowErrors: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
