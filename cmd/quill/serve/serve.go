// Package servecmder provides the serve command, which runs the generation
// server and the read API together.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/quill/api"
	"github.com/papercomputeco/quill/pkg/config"
	"github.com/papercomputeco/quill/pkg/credentials"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/upstream"
	"github.com/papercomputeco/quill/proxy"
)

type serveCommander struct {
	flags config.FlagSet

	listen       string
	apiListen    string
	instance     string
	provider     string
	baseURL      string
	model        string
	maxTokens    uint
	idleTimeout  string
	storage      string
	sqlitePath   string
	postgresDSN  string
	events       string
	kafkaBrokers string
	kafkaTopic   string
	verify       string
	verifySecret string

	eventPrefix  string
	sentinel     string
	deltaPath    string
	openMarker   string
	closeMarker  string
	framePrefix  string
	dropTrailing bool

	disableMCP bool
	logFile    string
	debug      bool
	configDir  string

	viper  *viper.Viper
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagAPIListen,
	config.FlagInstance,
	config.FlagProvider,
	config.FlagBaseURL,
	config.FlagModel,
	config.FlagMaxTokens,
	config.FlagIdleTimeout,
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEvents,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagVerify,
	config.FlagVerifySecret,
	config.FlagStreamPrefix,
	config.FlagStreamEndMark,
	config.FlagDeltaPath,
	config.FlagThinkOpen,
	config.FlagThinkClose,
	config.FlagFramePrefix,
	config.FlagDropTrailing,
}

const serveLongDesc string = `Run the quill generation server and read API.

The generation server builds a prompt for each request, streams the
completion from the configured OpenAI-compatible provider and relays the
visible text as frames, hiding reasoning spans. Finished generations are
stored and can be read back through the read API.

Relay and model settings in config.toml are reloaded while the server runs.

Examples:
  quill serve
  quill serve --provider deepseek --model deepseek-reasoner
  quill serve --storage sqlite --sqlite ./quill.db
  quill serve --events kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the quill services"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{flags: config.Flags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, cmder.flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagInstance, &cmder.instance)
	config.AddStringFlag(cmd, cmder.flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, cmder.flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, cmder.flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorage, &cmder.storage)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEvents, &cmder.events)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVerify, &cmder.verify)
	config.AddStringFlag(cmd, cmder.flags, config.FlagVerifySecret, &cmder.verifySecret)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStreamPrefix, &cmder.eventPrefix)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStreamEndMark, &cmder.sentinel)
	config.AddStringFlag(cmd, cmder.flags, config.FlagDeltaPath, &cmder.deltaPath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagThinkOpen, &cmder.openMarker)
	config.AddStringFlag(cmd, cmder.flags, config.FlagThinkClose, &cmder.closeMarker)
	config.AddStringFlag(cmd, cmder.flags, config.FlagFramePrefix, &cmder.framePrefix)
	config.AddBoolFlag(cmd, cmder.flags, config.FlagDropTrailing, &cmder.dropTrailing)
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the MCP endpoint on the read API")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	cfg, err := config.FromViper(c.viper)
	if err != nil {
		return err
	}

	apiKey, err := c.resolveAPIKey(cfg.Upstream.Provider)
	if err != nil {
		return err
	}
	if apiKey == "" {
		c.logger.Warn("no API key configured; generations will fail until one is set",
			"provider", cfg.Upstream.Provider,
			"env", credentials.EnvVarForProvider(cfg.Upstream.Provider),
		)
	}

	driver, err := newStorageDriver(ctx, cfg.Storage, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := newPublisher(cfg.Events, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	verifier, err := newVerifier(cfg.Verify, c.logger)
	if err != nil {
		return err
	}

	client := upstream.New(upstream.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		APIKey:      apiKey,
		IdleTimeout: cfg.Upstream.IdleTimeoutDuration(),
		Headers:     upstreamHeaders(cfg.Upstream.Provider),
	}, c.logger)

	p, err := proxy.New(proxy.Config{
		ListenAddr: cfg.Server.Listen,
		Upstream:   client,
		Verifier:   verifier,
		Publisher:  publisher,
		Instance:   cfg.Server.Instance,
		Settings:   settingsFromConfig(cfg),
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating generation server: %w", err)
	}
	defer p.Close()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Shutdown()

	c.watchConfig(p)

	c.logger.Info("starting quill",
		"listen", cfg.Server.Listen,
		"api_listen", cfg.API.Listen,
		"upstream", client.URL(),
		"model", cfg.Upstream.Model,
		"storage", cfg.Storage.Driver,
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("generation server error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}

// newLogger writes pretty logs to stderr and, with --log-file, JSON records
// to the file as well.
func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	pretty := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		return pretty, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(pretty, file), func() { _ = f.Close() }, nil
}

func (c *serveCommander) resolveAPIKey(provider string) (string, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	if err := mgr.LoadDotEnv(); err != nil {
		return "", err
	}
	return mgr.Resolve(provider)
}

// watchConfig reloads relay and model settings when config.toml changes.
// Listen addresses, storage, credentials and the upstream endpoint need a
// restart.
func (c *serveCommander) watchConfig(p *proxy.Proxy) {
	if c.viper.ConfigFileUsed() == "" {
		return
	}

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := config.FromViper(c.viper)
		if err != nil {
			c.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		p.Reload(settingsFromConfig(cfg))
	})
	c.viper.WatchConfig()
	c.logger.Debug("watching config for changes", "file", c.viper.ConfigFileUsed())
}
