package config

const (
	defaultDataDir               = "~/.local/share/shuttle"
	defaultLogDir                = "~/.local/share/shuttle/logs"
	defaultAPIBind               = "127.0.0.1:7519"
	defaultTokenTTLMinutes       = 60
	defaultDispatchInterval      = 30
	defaultBatchSize             = 10
	defaultWorkers               = 4
	defaultMaxAttempts           = 3
	defaultRetryBaseMS           = 500
	defaultRetryFactor           = 2
	defaultBreakerTrips          = 5
	defaultWarningThreshold      = 10
	defaultCriticalThreshold     = 30
	defaultMonitorWindow         = 100
	defaultNotifyRequestTimeout  = 10
	defaultNotifyThrottleSeconds = 300
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultPlatformAccount       = "default"
)

func defaultPlatforms() []string {
	return []string{"tiktok", "instagram", "youtube"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		API: API{
			TokenTTLMinutes: defaultTokenTTLMinutes,
		},
		Dispatch: Dispatch{
			Interval:     defaultDispatchInterval,
			BatchSize:    defaultBatchSize,
			Workers:      defaultWorkers,
			DueOnly:      true,
			MaxAttempts:  defaultMaxAttempts,
			RetryBaseMS:  defaultRetryBaseMS,
			RetryFactor:  defaultRetryFactor,
			BreakerTrips: defaultBreakerTrips,
		},
		Monitor: Monitor{
			WarningThreshold:  defaultWarningThreshold,
			CriticalThreshold: defaultCriticalThreshold,
			WindowSize:        defaultMonitorWindow,
		},
		Notifications: Notifications{
			RequestTimeout:        defaultNotifyRequestTimeout,
			ThrottleWindowSeconds: defaultNotifyThrottleSeconds,
			Posts:                 true,
			Errors:                true,
		},
		Platforms: Platforms{
			Enabled: defaultPlatforms(),
			Account: defaultPlatformAccount,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
