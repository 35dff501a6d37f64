package main

import (
	"fmt"
	"log/slog"
	"os"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/caseflow-io/caseflow"
	"github.com/caseflow-io/caseflow/internal/config"
	"github.com/caseflow-io/caseflow/internal/logging"
	fileAdapter "github.com/caseflow-io/caseflow/pkg/adapters/file"
	redisAdapter "github.com/caseflow-io/caseflow/pkg/adapters/redis"
	"github.com/caseflow-io/caseflow/pkg/observability"
)

var rootCmd = &cobra.Command{
	Use:   "caseflow",
	Short: "Caseflow is a human-interruptible customer-service workflow engine",
	Long:  `Caseflow drives multi-step support conversations: it classifies intent, escalates to humans, and executes refunds behind a durable confirmation gate.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().String("store", "memory", "State store backend: memory, file, or redis")
	rootCmd.PersistentFlags().String("data-dir", ".caseflow", "Data directory for the file store")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs instead of text")
}

func buildLogger(cmd *cobra.Command) *slog.Logger {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	jsonFlag, _ := cmd.Flags().GetBool("log-json")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelFlag)); err != nil {
		level = slog.LevelInfo
	}
	if jsonFlag {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// buildEngine wires the engine from flags and config: store selection,
// the metrics registry, and for redis deployments the distributed lock.
func buildEngine(cmd *cobra.Command, metrics *observability.Metrics) (*caseflow.Engine, *config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := buildLogger(cmd)
	opts := []caseflow.Option{caseflow.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, caseflow.WithMetrics(metrics))
	}

	storeFlag, _ := cmd.Flags().GetString("store")
	switch storeFlag {
	case "memory":
		// caseflow.New defaults to in-memory adapters.

	case "file":
		// Conversations persist to disk; idempotency records stay in
		// memory. Crash-safe refund dedup needs the redis backend.
		dataDir, _ := cmd.Flags().GetString("data-dir")
		opts = append(opts, caseflow.WithStateStore(fileAdapter.New(dataDir)))

	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts,
			caseflow.WithStateStore(redisAdapter.NewFromClient(client,
				redisAdapter.WithPrefix(cfg.Redis.Prefix+"conversation:"))),
			caseflow.WithIdempotencyStore(redisAdapter.NewIdempotencyStore(client, cfg.Redis.Prefix)),
			caseflow.WithLocker(redisAdapter.NewLocker(client, cfg.Redis.Prefix)),
		)

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", storeFlag)
	}

	engine, err := caseflow.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}
