package config

const (
	defaultDataDir       = "~/.local/share/salience/data"
	defaultMediaDir      = "~/.local/share/salience/media"
	defaultLogDir        = "~/.local/share/salience/logs"
	defaultAPIBind       = "127.0.0.1:8642"
	defaultTokenTTLHours = 24
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultTotalTags     = 587
	defaultMinDistance   = 2
	defaultMinMatch      = 3
	defaultSearchPool    = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Auth: Auth{
			TokenTTLHours: defaultTokenTTLHours,
		},
		Tags: Tags{
			TotalTags:   defaultTotalTags,
			MinDistance: defaultMinDistance,
			MinMatch:    defaultMinMatch,
			SearchPool:  defaultSearchPool,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
