package config

const (
	defaultDataDir     = "~/.local/share/adforge"
	defaultUploadDir   = "~/.local/share/adforge/uploads"
	defaultArtifactDir = "~/.local/share/adforge/artifacts"
	defaultLogDir      = "~/.local/share/adforge/logs"
	defaultAPIBind     = "127.0.0.1:8196"

	defaultVideoTimeoutSeconds   = 300
	defaultWebsiteTimeoutSeconds = 120
	defaultPublishTimeoutSeconds = 60
	defaultPollIntervalSeconds   = 2

	defaultScriptBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultScriptModel          = "gemini-2.0-flash"
	defaultScriptTimeoutSeconds = 30

	defaultReconcileInterval  = 300
	defaultErrorRetryInterval = 10

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			UploadDir:   defaultUploadDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Renderers: Renderers{
			Video: Renderer{
				TimeoutSeconds:      defaultVideoTimeoutSeconds,
				PollIntervalSeconds: defaultPollIntervalSeconds,
			},
			Website: Renderer{
				TimeoutSeconds:      defaultWebsiteTimeoutSeconds,
				PollIntervalSeconds: defaultPollIntervalSeconds,
			},
			Publish: Renderer{
				TimeoutSeconds:      defaultPublishTimeoutSeconds,
				PollIntervalSeconds: defaultPollIntervalSeconds,
			},
		},
		Script: Script{
			BaseURL:        defaultScriptBaseURL,
			Model:          defaultScriptModel,
			TimeoutSeconds: defaultScriptTimeoutSeconds,
		},
		Workflow: Workflow{
			ReconcileInterval:  defaultReconcileInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
