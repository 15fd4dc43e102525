// Package cmd holds the command line entry points and the logger setup.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/config"
)

var (
	v          = config.New()
	configFile string
)

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "guild-chat-service",
	Short:        "Community chat backend: REST, websocket fan-out and gRPC health",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML/JSON/TOML config file")
	flags.UintP("log-level", "l", 0, "Verbosity: 0 info, 1 debug, 2 trace")
	flags.String("log-file", "-", "Log file path, - for stdout")
	bindFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(config.KeyLogFile, flags.Lookup("log-file"))

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads settings and configures logging from them.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return cfg, err
	}
	if err := initLog(cfg.LogLevel, cfg.LogFile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func initLog(threshold uint, logPath string) error {
	if logPath != "-" && logPath != "" {
		jww.SetStdoutOutput(io.Discard)
		out, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		jww.SetLogOutput(out)
	}

	switch {
	case threshold > 1:
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
		jww.INFO.Printf("log level set to: TRACE")
	case threshold == 1:
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
		jww.INFO.Printf("log level set to: DEBUG")
	default:
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
		jww.INFO.Printf("log level set to: INFO")
	}
	return nil
}
