package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kanban-app/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Kanban board state engine",
	Long: `kanban serves a single kanban workspace over HTTP.

Boards, columns and tasks are changed by posting command batches; every
accepted batch is persisted as a snapshot and optionally journaled and
broadcast to other replicas.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		if cfg.Debug {
			log.SetLevel(log.DebugLevel)
		}
		if cfg.LogFormat == config.LogFormatJSON {
			log.SetFormatter(&log.JSONFormatter{})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initStorageCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
