package config

const (
	defaultArchiveDir            = "~/galleries"
	defaultTorrentDir            = "~/.local/share/galleryvault/torrents"
	defaultStateDir              = "~/.local/share/galleryvault"
	defaultLogDir                = "~/.local/share/galleryvault/logs"
	defaultAPIBind               = "127.0.0.1:7489"
	defaultMinFreeGiB            = 1.0
	defaultBatchSize             = 900
	defaultWaitSeconds           = 3.0
	defaultCutoff                = 0.5
	defaultMaxMatches            = 10
	defaultTransferPollSeconds   = 60
	defaultRedownloadPollSeconds = 300
	defaultPoolSize              = 4
	defaultHTTPRetries           = 3
	defaultHTTPTimeoutSeconds    = 25
	defaultUserAgent             = "galleryvault/dev"
	defaultTransmissionURL       = "http://127.0.0.1:9091/transmission/rpc"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 60
	defaultMetricsNamespace      = "galleryvault"
	defaultNotifyTimeoutSeconds  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArchiveDir: defaultArchiveDir,
			TorrentDir: defaultTorrentDir,
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
			MinFreeGiB: defaultMinFreeGiB,
		},
		Crawl: Crawl{
			WaitSeconds: defaultWaitSeconds,
			BatchSize:   defaultBatchSize,
		},
		Matching: Matching{
			DefaultCutoff: defaultCutoff,
			MaxMatches:    defaultMaxMatches,
		},
		Workflow: Workflow{
			TransferPollSeconds:   defaultTransferPollSeconds,
			RedownloadPollSeconds: defaultRedownloadPollSeconds,
			PoolSize:              defaultPoolSize,
			HTTPRetries:           defaultHTTPRetries,
			HTTPTimeoutSeconds:    defaultHTTPTimeoutSeconds,
			UserAgent:             defaultUserAgent,
		},
		Transmission: Transmission{
			URL: defaultTransmissionURL,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Namespace: defaultMetricsNamespace,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Providers: map[string]Provider{},
	}
}
