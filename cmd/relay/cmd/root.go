// Package cmd implements the relay CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pricofy/translation-relay/internal/delivery"
	"github.com/pricofy/translation-relay/internal/domain"
	"github.com/pricofy/translation-relay/internal/logging"
	"github.com/pricofy/translation-relay/internal/settings"
	"github.com/pricofy/translation-relay/internal/transport"
	"github.com/pricofy/translation-relay/internal/worker"
)

// Transports selectable with --transport.
const (
	transportLambda = "lambda"
	transportNATS   = "nats"
	transportLocal  = "local"
)

var cfgFile string

// Execute builds the command tree and runs it. Interrupts cancel in-flight sends.
func Execute() error {
	return execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(args []string, in io.Reader, out, errOut io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Talk to the translation relay worker",
		Long: `relay sends messages to the translation relay worker with retries and
revival waits. The worker can be reached as an AWS Lambda function, over NATS,
or run in-process with --transport local.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relay/config.yaml)")
	flags.String("transport", transportLambda, "worker transport: lambda, nats or local")
	flags.String("function", "relay-worker", "Lambda function name of the worker")
	flags.String("nats-url", nats.DefaultURL, "NATS server URL")
	flags.String("subject", transport.DefaultSubject, "NATS subject the worker listens on")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("output", "table", "output format: table or json")
	flags.Duration("timeout", delivery.DefaultOptions().Timeout, "per-attempt timeout")
	flags.Int("retries", delivery.DefaultOptions().MaxRetries, "attempts before giving up")
	flags.Bool("wait-for-revival", true, "wait for the worker to come back between attempts")

	for _, name := range []string{"transport", "function", "nats-url", "subject", "log-level", "output", "timeout", "retries", "wait-for-revival"} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	// Used by --transport local only.
	viper.SetDefault("store", settings.StoreMemory)
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("capture_file", "")
	viper.SetDefault("chunk_runes", 1800)
	viper.SetDefault("http_timeout", 10*time.Second)

	root.AddCommand(
		newTranslateCmd(),
		newPingCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newCaptureCmd(),
	)
	return root
}

// initConfig reads the config file and RELAY_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".relay"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

func isJSONOutput() bool {
	return viper.GetString("output") == "json"
}

func newLogger() *slog.Logger {
	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = slog.LevelWarn
	}
	return logging.New(os.Stderr, level, logging.FormatText)
}

// session is a connected client plus whatever it must release.
type session struct {
	client *delivery.Client
	// notices receives pushes addressed to this client; nil when the
	// transport cannot deliver them.
	notices <-chan domain.Envelope
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func sendOptions() *delivery.Options {
	opts := delivery.DefaultOptions()
	opts.Timeout = viper.GetDuration("timeout")
	opts.MaxRetries = viper.GetInt("retries")
	opts.WaitForRevival = viper.GetBool("wait_for_revival")
	return &opts
}

// connect builds a client for the configured transport.
func connect(ctx context.Context) (*session, error) {
	logger := newLogger()
	s := &session{}
	clientOpts := delivery.ClientOptions{Send: sendOptions(), Logger: logger}

	var sender transport.Sender
	switch name := viper.GetString("transport"); name {
	case transportLambda:
		l, err := transport.NewLambda(ctx, viper.GetString("function"))
		if err != nil {
			return nil, err
		}
		sender = l

	case transportNATS:
		conn, err := nats.Connect(viper.GetString("nats_url"), nats.Name("relay-cli"))
		if err != nil {
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		sender = transport.NewNATS(conn, viper.GetString("subject"))

		client := delivery.NewClient(sender, clientOpts)
		notices := make(chan domain.Envelope, 4)
		sub, err := transport.SubscribeNotices(conn, client.Origin(), func(env domain.Envelope) {
			select {
			case notices <- env:
			default:
			}
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = sub.Unsubscribe() })
		s.client, s.notices = client, notices
		return s, nil

	case transportLocal:
		local, err := startLocal(ctx, logger, s)
		if err != nil {
			s.Close()
			return nil, err
		}
		sender = local
		client := delivery.NewClient(sender, clientOpts)
		s.client, s.notices = client, local.Notices(client.Origin())
		return s, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}

	s.client = delivery.NewClient(sender, clientOpts)
	return s, nil
}

// localNotifier forwards pushes to a Local created after the handlers.
type localNotifier struct {
	local *transport.Local
}

func (n *localNotifier) Notify(ctx context.Context, origin string, env domain.Envelope) error {
	return n.local.Notify(ctx, origin, env)
}

// startLocal runs a worker in this process.
func startLocal(ctx context.Context, logger *slog.Logger, s *session) (*transport.Local, error) {
	st := settings.Settings{
		Store:       viper.GetString("store"),
		RedisAddr:   viper.GetString("redis_addr"),
		RedisPrefix: "relay:",
		HTTPTimeout: viper.GetDuration("http_timeout"),
		ChunkRunes:  viper.GetInt("chunk_runes"),
		CaptureFile: viper.GetString("capture_file"),
	}

	notifier := &localNotifier{}
	w, err := worker.New(ctx, st, worker.Options{Logger: logger, Notifier: notifier})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = w.Close() })

	local, err := transport.NewLocal(w.Table, transport.LocalOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, local.Close)
	notifier.local = local
	return local, nil
}
