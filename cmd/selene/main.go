package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"selene/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string
	sessionID  string
	userID     string
	modeFlag   string

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "selene",
	Short: "selene - self-correcting chat agent core",
	Long: `selene turns one inbound message into one delivered response through a
routed, reviewed and self-correcting generation pipeline.

Every turn is routed to a compute tier, planned, drafted, reviewed and
repaired within a bounded loop, then handed to an asynchronous critique
queue whose findings feed back into future prompts.

Run without arguments to start the interactive chat loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(".selene", "config.yaml"), "config file path")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "session id")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "local", "user id")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "companion", "mode: assistant, companion or voice")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(turnCmd)
	rootCmd.AddCommand(critiqueCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
