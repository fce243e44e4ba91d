package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent quill configuration stored as config.toml
// in the .quill/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Server   ServerConfig   `toml:"server"`
	API      APIConfig      `toml:"api"`
	Upstream UpstreamConfig `toml:"upstream"`
	Relay    RelayConfig    `toml:"relay"`
	Storage  StorageConfig  `toml:"storage"`
	Events   EventsConfig   `toml:"events"`
	Verify   VerifyConfig   `toml:"verify"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig holds generation server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Instance names this server in published events.
	Instance string `toml:"instance,omitempty"`
}

// APIConfig holds read API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// UpstreamConfig selects the OpenAI-compatible provider and model settings.
type UpstreamConfig struct {
	// Provider names the credentials entry (and env var) holding the API key.
	Provider    string  `toml:"provider,omitempty"`
	BaseURL     string  `toml:"base_url,omitempty"`
	Model       string  `toml:"model,omitempty"`
	MaxTokens   uint    `toml:"max_tokens,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`

	// IdleTimeout is a Go duration string such as "60s".
	IdleTimeout string `toml:"idle_timeout,omitempty"`
}

// IdleTimeoutDuration parses IdleTimeout. An empty or invalid value yields 0,
// which the upstream client treats as its default.
func (u UpstreamConfig) IdleTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(u.IdleTimeout)
	if err != nil {
		return 0
	}
	return d
}

// RelayConfig holds the stream dialect and frame format. Empty fields take
// the relay's OpenAI / <think> defaults.
type RelayConfig struct {
	EventPrefix  string `toml:"event_prefix,omitempty"`
	Sentinel     string `toml:"sentinel,omitempty"`
	DeltaPath    string `toml:"delta_path,omitempty"`
	OpenMarker   string `toml:"open_marker,omitempty"`
	CloseMarker  string `toml:"close_marker,omitempty"`
	FramePrefix  string `toml:"frame_prefix,omitempty"`
	DropTrailing bool   `toml:"drop_trailing,omitempty"`
}

// StorageConfig selects where finished generations are persisted.
type StorageConfig struct {
	// Driver is one of "inmemory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig selects the generation event publisher.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated broker list.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers on commas.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// VerifyConfig selects the human verification gate.
type VerifyConfig struct {
	// Provider is "none" or "turnstile".
	Provider string `toml:"provider,omitempty"`
	Secret   string `toml:"secret,omitempty"`
	Endpoint string `toml:"endpoint,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// generation server and read API (e.g. quill generate, quill history).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ServerTarget string `toml:"server_target,omitempty"`
	APITarget    string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":   stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.instance": stringKey(func(c *Config) *string { return &c.Server.Instance }),
	"api.listen":      stringKey(func(c *Config) *string { return &c.API.Listen }),

	"upstream.provider": stringKey(func(c *Config) *string { return &c.Upstream.Provider }),
	"upstream.base_url": stringKey(func(c *Config) *string { return &c.Upstream.BaseURL }),
	"upstream.model":    stringKey(func(c *Config) *string { return &c.Upstream.Model }),
	"upstream.max_tokens": {
		get: func(c *Config) string {
			if c.Upstream.MaxTokens == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Upstream.MaxTokens), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for upstream.max_tokens: %w", err)
			}
			c.Upstream.MaxTokens = uint(n)
			return nil
		},
	},
	"upstream.temperature": {
		get: func(c *Config) string {
			if c.Upstream.Temperature == 0 {
				return ""
			}
			return strconv.FormatFloat(c.Upstream.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 2 {
				return fmt.Errorf("invalid value for upstream.temperature: %q (expected 0 to 2)", v)
			}
			c.Upstream.Temperature = f
			return nil
		},
	},
	"upstream.idle_timeout": {
		get: func(c *Config) string { return c.Upstream.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for upstream.idle_timeout: %w", err)
			}
			c.Upstream.IdleTimeout = v
			return nil
		},
	},

	"relay.event_prefix":  stringKey(func(c *Config) *string { return &c.Relay.EventPrefix }),
	"relay.sentinel":      stringKey(func(c *Config) *string { return &c.Relay.Sentinel }),
	"relay.delta_path":    stringKey(func(c *Config) *string { return &c.Relay.DeltaPath }),
	"relay.open_marker":   stringKey(func(c *Config) *string { return &c.Relay.OpenMarker }),
	"relay.close_marker":  stringKey(func(c *Config) *string { return &c.Relay.CloseMarker }),
	"relay.frame_prefix":  stringKey(func(c *Config) *string { return &c.Relay.FramePrefix }),
	"relay.drop_trailing": boolKey("relay.drop_trailing", func(c *Config) *bool { return &c.Relay.DropTrailing }),

	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case StorageInMemory, StorageSQLite, StoragePostgres:
				c.Storage.Driver = v
				return nil
			}
			return fmt.Errorf("invalid value for storage.driver: %q (expected inmemory, sqlite or postgres)", v)
		},
	},
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case ProviderNone, EventsKafka:
				c.Events.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for events.provider: %q (expected none or kafka)", v)
		},
	},
	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"verify.provider": {
		get: func(c *Config) string { return c.Verify.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case ProviderNone, VerifyTurnstile:
				c.Verify.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for verify.provider: %q (expected none or turnstile)", v)
		},
	},
	"verify.secret":   stringKey(func(c *Config) *string { return &c.Verify.Secret }),
	"verify.endpoint": stringKey(func(c *Config) *string { return &c.Verify.Endpoint }),

	"client.server_target": stringKey(func(c *Config) *string { return &c.Client.ServerTarget }),
	"client.api_target":    stringKey(func(c *Config) *string { return &c.Client.APITarget }),
}

// orderedKeys lists configKeys in the TOML section layout.
var orderedKeys = []string{
	"server.listen",
	"server.instance",
	"api.listen",
	"upstream.provider",
	"upstream.base_url",
	"upstream.model",
	"upstream.max_tokens",
	"upstream.temperature",
	"upstream.idle_timeout",
	"relay.event_prefix",
	"relay.sentinel",
	"relay.delta_path",
	"relay.open_marker",
	"relay.close_marker",
	"relay.frame_prefix",
	"relay.drop_trailing",
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"events.provider",
	"events.brokers",
	"events.topic",
	"verify.provider",
	"verify.secret",
	"verify.endpoint",
	"client.server_target",
	"client.api_target",
}
