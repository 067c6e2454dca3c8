package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kanban-app/domain"
	"kanban-app/report"
	"kanban-app/storage"
)

var (
	provisionTimeout time.Duration

	reportOut         string
	reportEventName   string
	reportEventDomain string
)

var initStorageCmd = &cobra.Command{
	Use:   "init-storage",
	Short: "Create the snapshot table and journal queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.ConnectionString == "" {
			return errors.New("storage.connection_string is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), provisionTimeout)
		defer cancel()
		if err := storage.Provision(ctx, cfg.Storage.ConnectionString, cfg.Storage.Table, cfg.Storage.JournalQueue); err != nil {
			return fmt.Errorf("provision: %w", err)
		}
		log.Info("storage initialized")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print board events published by running servers",
	Long: `watch subscribes to the redis channel the servers publish on and
prints one JSON line per persisted batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required")
		}
		opts, err := storage.ParseRedisOptions(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		storage.NewRedisNotifier(rc, cfg.Redis.Channel).Subscribe(ctx, log.StandardLogger(), printEvent(cmd.OutOrStdout()))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [log-file]",
	Short: "Summarize command request events from JSON logs",
	Long: `report reads server logs written with log_format=json, from the given
file or stdin, and aggregates the per request events of POST /api/commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		collector := report.NewCollector(reportEventName, reportEventDomain)
		if _, err := collector.ReadFrom(in); err != nil {
			return err
		}
		summary := collector.Summary()
		if reportOut != "" {
			if err := writeSummary(reportOut, summary); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary.ShortString())
		return nil
	},
}

func init() {
	initStorageCmd.Flags().DurationVar(&provisionTimeout, "timeout", time.Minute, "Provisioning timeout")

	reportCmd.Flags().StringVar(&reportOut, "out", "", "Write the full summary as JSON to this path")
	reportCmd.Flags().StringVar(&reportEventName, "event-name", report.CommandsEventName, "Event name to collect")
	reportCmd.Flags().StringVar(&reportEventDomain, "event-domain", report.CommandsEventDomain, "Event domain to match, empty matches any")
}

func writeSummary(path string, summary report.Summary) error {
	data, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printEvent(w io.Writer) func(domain.BoardEvent) {
	return func(ev domain.BoardEvent) {
		line, err := sonic.Marshal(ev)
		if err != nil {
			log.Errorf("encode event failed, err: %v", err)
			return
		}
		fmt.Fprintln(w, string(line))
	}
}
