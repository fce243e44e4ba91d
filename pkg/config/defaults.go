package config

const (
	ProviderNone = "none"

	StorageInMemory = "inmemory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	EventsKafka = "kafka"

	VerifyTurnstile = "turnstile"
)

const (
	defaultServerListen = ":8080"
	defaultAPIListen    = ":8081"

	defaultUpstreamProvider = "openai"
	defaultUpstreamBaseURL  = "https://api.openai.com/v1"
	defaultUpstreamModel    = "gpt-4o-mini"
	defaultMaxTokens        = 2048
	defaultTemperature      = 0.9
	defaultIdleTimeout      = "60s"

	defaultEventsTopic = "quill.generations"

	defaultClientServerTarget = "http://localhost:8080"
	defaultClientAPITarget    = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Upstream: UpstreamConfig{
			Provider:    defaultUpstreamProvider,
			BaseURL:     defaultUpstreamBaseURL,
			Model:       defaultUpstreamModel,
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
			IdleTimeout: defaultIdleTimeout,
		},
		Storage: StorageConfig{
			Driver: StorageInMemory,
		},
		Events: EventsConfig{
			Provider: ProviderNone,
			Topic:    defaultEventsTopic,
		},
		Verify: VerifyConfig{
			Provider: ProviderNone,
		},
		Client: ClientConfig{
			ServerTarget: defaultClientServerTarget,
			APITarget:    defaultClientAPITarget,
		},
	}
}
