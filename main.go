// Command streamcast bridges chat commands from Twitch or Telegram to a local
// OBS Studio instance.
//
// The default `run` command:
//   - Loads configuration and initializes structured logging.
//   - Decrypts the host-bound credentials file (bot token, OBS password,
//     moderator roster).
//   - Optionally connects to Postgres and records every command in an audit log.
//   - Starts the chat gateway, an optional scene refresh schedule and a small
//     HTTP server with /healthz, /readyz, /status, /scenes and /metrics.
//
// `setup`, `reset`, `mods` and `audit` manage the stored credentials and
// inspect state without starting the bridge. Shutdown is graceful on
// SIGINT/SIGTERM.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/streamcast/chat"
	"github.com/onnwee/streamcast/twitchapi"
)

const version = "1.0.0"

// Exit codes. A rejected bot token is reported separately so supervisors do
// not restart into the same failure.
const (
	exitFailure      = 1
	exitInvalidToken = 2
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamcast",
		Short:         "streamcast - control OBS from chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBridge,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	root.AddCommand(
		&cobra.Command{Use: "run", Short: "Start the chat bridge (default)", RunE: runBridge},
		newSetupCmd(),
		newResetCmd(),
		newModsCmd(),
		newAuditCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("streamcast exited with error", slog.Any("err", err))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, chat.ErrInvalidToken) || errors.Is(err, twitchapi.ErrInvalidToken) {
		return exitInvalidToken
	}
	return exitFailure
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	unknown := ""
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = os.Getenv("LOG_LEVEL")
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if unknown != "" {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", unknown))
	}
	slog.Debug("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 6 {
		return "***"
	}
	return fmt.Sprintf("***%s", s[len(s)-4:])
}
