// Command dialogpipe runs the conversational needs-analysis service: the
// HTTP API that backs the chat widget and flow editor, plus an optional
// WhatsApp channel that runs the same questionnaire over messaging.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Projects025/dialog-cu-marius-sub000/internal/api"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/flow"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/messaging"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/store"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/twiliowhatsapp"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/util"
	"github.com/Projects025/dialog-cu-marius-sub000/internal/whatsapp"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for service state data.
	DefaultStateDir = "/var/lib/dialogpipe"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "dialogpipe.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	apiOpts := buildAPIOptions(flags)

	ctx := context.Background()
	if *flags.channel != "" {
		channelOpts, err := startChannel(ctx, st, flags)
		if err != nil {
			slog.Error("Failed to start messaging channel", "error", err, "channel", *flags.channel)
			os.Exit(1)
		}
		apiOpts = append(apiOpts, channelOpts...)
	}

	server := api.NewServer(st, apiOpts...)
	slog.Info("Starting dialog service", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "channel", *flags.channel)
	if err := server.Run(); err != nil {
		slog.Error("Dialog service failed", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration.
type Config struct {
	DatabaseURL  string
	StateDir     string
	APIAddr      string
	Channel      string
	ChannelAgent string
	WhatsAppDSN  string
}

// Flags holds command line flag values.
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	channel      *string
	channelAgent *string
	waDSN        *string
	qrOutput     *string
	numeric      *bool
	nudgeMinutes *int
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and an
// optional .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("DIALOGPIPE_STATE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		Channel:      os.Getenv("CHANNEL"),
		ChannelAgent: os.Getenv("CHANNEL_AGENT_ID"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("no database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = "file:" + filepath.Join(config.StateDir, "whatsapp.db") + "?_foreign_keys=on"
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for service data (overrides $DIALOGPIPE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		channel:      flag.String("channel", config.Channel, "messaging channel to serve: whatsapp, twilio, or empty for API only (overrides $CHANNEL)"),
		channelAgent: flag.String("channel-agent", config.ChannelAgent, "agent id attributed to channel conversations (overrides $CHANNEL_AGENT_ID)"),
		waDSN:        flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session store DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:     flag.String("qr-output", "", "path to write login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		nudgeMinutes: flag.Int("nudge-minutes", 30, "minutes of silence before a channel reminder"),
	}

	flag.Parse()

	// Moving state-dir without an explicit DSN moves the SQLite file too.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// ensureDirectoriesExist creates the state directory when the store is
// file-based.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	return os.MkdirAll(stateDir, 0755)
}

// buildStore selects the store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("no database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("detected PostgreSQL DSN", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("detected SQLite DSN", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildAPIOptions constructs API server configuration options.
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if util.ParseBoolEnv("INSTANT_RENDER", false) {
		apiOpts = append(apiOpts, api.WithInstantRender())
	}
	return apiOpts
}

// startChannel brings up the selected messaging channel and its runner,
// returning any extra API routes (e.g. the Twilio webhook).
func startChannel(ctx context.Context, st store.Store, flags Flags) ([]api.Option, error) {
	var svc messaging.Service
	var extra []api.Option

	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		tw := messaging.NewTwilioService(client)
		extra = append(extra, api.WithRoute("POST /webhooks/twilio", tw.WebhookHandler))
		svc = tw
	case "whatsapp":
		var waOpts []whatsapp.Option
		waOpts = append(waOpts, whatsapp.WithSessionDSN(*flags.waDSN))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRPath(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return nil, err
		}
		svc = messaging.NewWhatsAppService(client)
	default:
		return nil, fmt.Errorf("unknown channel %q: expected whatsapp or twilio", *flags.channel)
	}

	if err := svc.Start(ctx); err != nil {
		return nil, err
	}

	runner := messaging.NewRunner(svc, flow.MasterFlow(), *flags.channelAgent,
		messaging.WithConversationOptions(
			flow.WithLeadSink(st),
			flow.WithStateManager(flow.NewStoreBasedStateManager(st)),
		),
		messaging.WithNudge(time.Duration(*flags.nudgeMinutes)*time.Minute, ""),
	)
	go func() {
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			slog.Error("channel runner exited", "error", err)
		}
	}()

	slog.Info("messaging channel started", "channel", *flags.channel, "agent", *flags.channelAgent)
	return extra, nil
}
