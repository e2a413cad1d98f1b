package main

import (
	"github.com/arnold/mandala-api/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "mandala",
	Short:        "Goal tree API",
	Long:         "Mandala serves a center goal, eight major goals, sixty-four middle goals and their checklists, and celebrates each goal the first time it is achieved.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	cobra.OnInitialize(loadEnv)

	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadEnv reads .env if present; the environment always wins.
func loadEnv() {
	_ = godotenv.Load()
}

func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
