// Package cmd implements the command-line interface for the notice crawler.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/notice-crawler/cmd/crawl"
	"github.com/jonesrussell/north-cloud/notice-crawler/cmd/serve"
	cmdsources "github.com/jonesrussell/north-cloud/notice-crawler/cmd/sources"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/bootstrap"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// rootCmd represents the root command for the notice crawler CLI.
var rootCmd = &cobra.Command{
	Use:   "notice-crawler",
	Short: "University announcement crawler",
	Long: `Crawls configured university announcement sources, extracts articles and
their attachments, and forwards deduplicated items downstream.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yml", "crawler config file")
	rootCmd.PersistentFlags().String("sources", "", "sources file (overrides crawl.sources_path)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notice-crawler version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serve.Command(Options))
	rootCmd.AddCommand(crawl.Command(Options))
	rootCmd.AddCommand(cmdsources.Command(Options))
}

// initConfig binds flags and environment variables through viper.
func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	flags := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "sources", "debug"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}

	if err := viper.BindEnv("config", "CONFIG_PATH"); err != nil {
		return fmt.Errorf("failed to bind CONFIG_PATH: %w", err)
	}
	if err := viper.BindEnv("sources", "CRAWLER_SOURCES_PATH"); err != nil {
		return fmt.Errorf("failed to bind CRAWLER_SOURCES_PATH: %w", err)
	}
	if err := viper.BindEnv("debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}

	return nil
}

// Options returns the bootstrap options resolved from flags and environment.
func Options() bootstrap.Options {
	return bootstrap.Options{
		ConfigPath:  viper.GetString("config"),
		SourcesPath: viper.GetString("sources"),
		Debug:       viper.GetBool("debug"),
		Version:     Version,
	}
}
