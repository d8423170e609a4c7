package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/skyfold/cloudseed/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	region       string
	jsonLogs     bool
	verbose      bool
	otelEndpoint string
)

var rootCmd = &cobra.Command{
	Use:   "cloudseed",
	Short: "Resolve cluster seed hosts from the cloud inventory",
	Long: `cloudseed turns a cloud compute inventory into a list of cluster
member candidates: filtered by lifecycle state, region, group and host
name, and addressed by private or public IP.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Accept underscore flag spellings from older wrappers.
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.cloudseed.yaml)")
	rootCmd.PersistentFlags().StringVar(&region, "region", "us-east-1", "AWS Region")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint for traces")

	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("json-logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("otel-endpoint", rootCmd.PersistentFlags().Lookup("otel-endpoint"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".cloudseed.yaml"))
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("CLOUDSEED")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// newLogger builds the process logger the way the flags ask for it.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
