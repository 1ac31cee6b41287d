package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/client/api"
	"github.com/devnovikov/algoroom/internal/client/engine"
	"github.com/devnovikov/algoroom/internal/client/transport"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/protocol"
	"github.com/devnovikov/algoroom/pkg/logger"
)

const envPrefix = "ALGOROOM"

var joinCmd = &cobra.Command{
	Use:   "join <session-id>",
	Short: "Join a session from the terminal",
	Long: `Join a session and follow it. Every line read from stdin replaces the
document. Lines starting with ':' are commands:

  :lang <language>   switch language
  :retry             push the pending edit again
  :quit              leave the session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadClientConfig(cmd.Flags(), configPath)
		if err != nil {
			return err
		}

		lg, err := logger.NewLogger(&cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = lg.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return join(ctx, cfg, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), lg)
	},
}

func init() {
	addJoinFlags(joinCmd.Flags())
}

func addJoinFlags(f *pflag.FlagSet) {
	f.String("server-url", "", "base URL of the session server")
	f.Duration("debounce", 0, "quiet period before an edit is pushed")
	f.Duration("request-timeout", 0, "timeout of each REST call")
	f.Int("max-attempts", 0, "reconnect attempts before giving up")
	f.String("log-level", "", "log level")
}

// loadClientConfig layers defaults, an optional config file, ALGOROOM_*
// environment variables and flags, in increasing precedence.
func loadClientConfig(flags *pflag.FlagSet, path string) (*config.ClientConfig, error) {
	v := viper.New()
	defaults := config.DefaultClientConfig()

	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("debounce", defaults.Debounce)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("reconnect.base_delay", defaults.Reconnect.BaseDelay)
	v.SetDefault("reconnect.max_delay", defaults.Reconnect.MaxDelay)
	v.SetDefault("reconnect.max_jitter", defaults.Reconnect.MaxJitter)
	v.SetDefault("reconnect.max_attempts", defaults.Reconnect.MaxAttempts)
	v.SetDefault("reconnect.handshake_timeout", defaults.Reconnect.HandshakeTimeout)
	v.SetDefault("reconnect.read_timeout", defaults.Reconnect.ReadTimeout)
	v.SetDefault("logger.level", defaults.Logger.Level)
	v.SetDefault("logger.format", defaults.Logger.Format)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	for key, flag := range map[string]string{
		"server_url":             "server-url",
		"debounce":               "debounce",
		"request_timeout":        "request-timeout",
		"reconnect.max_attempts": "max-attempts",
		"logger.level":           "log-level",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg config.ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.SetDefaults()

	if err := config.ValidateClientConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// join follows one session until ctx is done, stdin ends or :quit is read
func join(ctx context.Context, cfg *config.ClientConfig, sessionID string, in io.Reader, out io.Writer, lg *zap.Logger) error {
	clientID := uuid.NewString()

	client := api.New(cfg.ServerURL, cfg.RequestTimeout, lg, api.WithClientID(clientID))
	ch, err := transport.NewChannel(cfg.ServerURL, sessionID, clientID, cfg.Reconnect, lg)
	if err != nil {
		return err
	}

	e := engine.New(sessionID, client,
		engine.WithTransport(ch),
		engine.WithDebounce(cfg.Debounce),
		engine.WithTimeout(cfg.RequestTimeout),
		engine.WithLogger(lg))
	defer e.Close()

	if err := e.Load(ctx); err != nil {
		return err
	}
	printView(out, e.View())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Warn("update stream stopped", zap.Error(err))
		}
	}()
	go watch(ctx, e, ch, out)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(ctx, e, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, e *engine.Engine, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		return false, e.Edit(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return true, nil
	case ":retry":
		return false, e.Retry(ctx)
	case ":lang":
		if len(fields) != 2 {
			return false, errors.New("usage: :lang <language>")
		}
		lang, err := protocol.ParseLanguage(fields[1])
		if err != nil {
			return false, err
		}
		return false, e.SwitchLanguage(ctx, lang)
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// watch prints visible changes, sync errors and connection state
func watch(ctx context.Context, e *engine.Engine, ch *transport.Channel, out io.Writer) {
	states := ch.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.Changes():
			printView(out, e.View())
		case err := <-e.Errors():
			fmt.Fprintf(out, "! %v\n", err)
		case s, ok := <-states:
			if !ok {
				return
			}
			fmt.Fprintf(out, "~ %s\n", s)
			if s == transport.StateDisconnected && ch.Err() != nil {
				fmt.Fprintf(out, "! %v\n", ch.Err())
			}
		}
	}
}

func printView(out io.Writer, v engine.View) {
	pending := ""
	if v.Pending {
		pending = " (unsynced)"
	}
	fmt.Fprintf(out, "# %s [%s] participants=%d%s\n", v.Session.ID, v.Session.Language, v.Session.Participants, pending)
	fmt.Fprintln(out, v.Session.Code)
	if r := v.Result; r != nil {
		fmt.Fprintf(out, "> success=%t time=%dms\n%s", r.Success, r.ExecutionTime, r.Output)
		if r.Error != "" {
			fmt.Fprintf(out, "> error: %s\n", r.Error)
		}
	}
}

