package config

const (
	defaultSessionsDir           = "~/.local/share/permitflow/sessions"
	defaultDataDir               = "~/.local/share/permitflow/data"
	defaultLogDir                = "~/.local/share/permitflow/logs"
	defaultTemplatePath          = "~/.config/permitflow/form_template.pdf"
	defaultLoginURL              = "https://upmines.upsdc.gov.in/DefaultLicense.aspx"
	defaultPortalBaseURL         = "https://upmines.upsdc.gov.in"
	defaultMaxLoginAttempts      = 5
	defaultRecognitionRetryLimit = 15
	defaultNavigationTimeout     = 20
	defaultElementTimeout        = 6
	defaultPostLoginTimeout      = 5
	defaultOCRMaxConcurrent      = 2
	defaultOCRTimeout            = 15
	defaultSweepInterval         = 600
	defaultSessionMaxAgeHours    = 12
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionsDir: defaultSessionsDir,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
		},
		Portal: Portal{
			LoginURL:              defaultLoginURL,
			BaseURL:               defaultPortalBaseURL,
			MaxLoginAttempts:      defaultMaxLoginAttempts,
			RecognitionRetryLimit: defaultRecognitionRetryLimit,
			NavigationTimeout:     defaultNavigationTimeout,
			ElementTimeout:        defaultElementTimeout,
			PostLoginTimeout:      defaultPostLoginTimeout,
		},
		Browser: Browser{
			Headless:  true,
			NoSandbox: true,
		},
		OCR: OCR{
			MaxConcurrent: defaultOCRMaxConcurrent,
			Timeout:       defaultOCRTimeout,
		},
		Render: Render{
			TemplatePath: defaultTemplatePath,
		},
		Sessions: Sessions{
			SweepInterval: defaultSweepInterval,
			MaxAgeHours:   defaultSessionMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Fetch:          true,
			Processing:     true,
			Generation:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
