package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so --server-target means
// the same thing on "quill generate" and "quill history".
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen        = "listen"
	FlagAPIListen     = "api-listen"
	FlagInstance      = "instance"
	FlagProvider      = "provider"
	FlagBaseURL       = "base-url"
	FlagModel         = "model"
	FlagMaxTokens     = "max-tokens"
	FlagIdleTimeout   = "idle-timeout"
	FlagStorage       = "storage"
	FlagSQLite        = "sqlite"
	FlagPostgres      = "postgres"
	FlagEvents        = "events"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagVerify        = "verify"
	FlagVerifySecret  = "verify-secret"
	FlagServerTarget  = "server-target"
	FlagAPITarget     = "api-target"
	FlagDropTrailing  = "drop-trailing"
	FlagFramePrefix   = "frame-prefix"
	FlagThinkOpen     = "open-marker"
	FlagThinkClose    = "close-marker"
	FlagDeltaPath     = "delta-path"
	FlagStreamPrefix  = "event-prefix"
	FlagStreamEndMark = "sentinel"
)

// Flags is the registry shared by every quill command.
var Flags = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the generation server to listen on"},
	FlagAPIListen:     {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the read API to listen on"},
	FlagInstance:      {Name: "instance", ViperKey: "server.instance", Description: "Instance name recorded in published events"},
	FlagProvider:      {Name: "provider", Shorthand: "p", ViperKey: "upstream.provider", Description: "Upstream provider whose API key is used (openai, openrouter, deepseek, groq)"},
	FlagBaseURL:       {Name: "base-url", Shorthand: "u", ViperKey: "upstream.base_url", Description: "OpenAI-compatible API base URL"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Model used for generations"},
	FlagMaxTokens:     {Name: "max-tokens", ViperKey: "upstream.max_tokens", Description: "Maximum tokens per generation"},
	FlagIdleTimeout:   {Name: "idle-timeout", ViperKey: "upstream.idle_timeout", Description: "Abort an upstream stream after this long without data"},
	FlagStorage:       {Name: "storage", ViperKey: "storage.driver", Description: "Storage driver (inmemory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgres:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEvents:        {Name: "events", ViperKey: "events.provider", Description: "Event publisher (none, kafka)"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for generation events"},
	FlagVerify:        {Name: "verify", ViperKey: "verify.provider", Description: "Human verification provider (none, turnstile)"},
	FlagVerifySecret:  {Name: "verify-secret", ViperKey: "verify.secret", Description: "Secret key for the verification provider"},
	FlagServerTarget:  {Name: "server-target", Shorthand: "t", ViperKey: "client.server_target", Description: "Generation server URL"},
	FlagAPITarget:     {Name: "api-target", ViperKey: "client.api_target", Description: "Read API URL"},
	FlagDropTrailing:  {Name: "drop-trailing", ViperKey: "relay.drop_trailing", Description: "Discard an unterminated final upstream line"},
	FlagFramePrefix:   {Name: "frame-prefix", ViperKey: "relay.frame_prefix", Description: "Prefix written before each frame"},
	FlagThinkOpen:     {Name: "open-marker", ViperKey: "relay.open_marker", Description: "Marker that starts hidden reasoning"},
	FlagThinkClose:    {Name: "close-marker", ViperKey: "relay.close_marker", Description: "Marker that ends hidden reasoning"},
	FlagDeltaPath:     {Name: "delta-path", ViperKey: "relay.delta_path", Description: "gjson path of the text delta in each event"},
	FlagStreamPrefix:  {Name: "event-prefix", ViperKey: "relay.event_prefix", Description: "Prefix of data lines in the upstream stream"},
	FlagStreamEndMark: {Name: "sentinel", ViperKey: "relay.sentinel", Description: "Payload that ends the upstream stream"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	v := viper.New()
	setViperDefaults(v)
	defaultVal := v.GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
