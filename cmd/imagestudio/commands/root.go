package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "imagestudio",
	Short: "Generate and edit images with ModelScope or Gemini",
	Long: `imagestudio generates images from prompts, edits existing images, keeps a
per-user history and serves the same operations over HTTP.

Configuration is read from --config (YAML), then overridden by environment
variables such as MODELSCOPE_API_KEY, GEMINI_API_KEY and IMAGESTUDIO_POLL_INTERVAL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "imagestudio.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "User id for history records")
}

// Execute runs the root command. SIGINT and SIGTERM cancel in-flight work.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
