package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"huddle/internal/client"
	"huddle/internal/config"
	"huddle/internal/storage"
	mongostore "huddle/internal/storage/mongo"
	"huddle/internal/storage/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Shared to-do list and group chat",
	Long: `huddle serves a shared to-do list and a group chat. Every change is stored
first and then pushed to all connected browsers and terminals over a websocket.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(watchCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.Bind(viper.GetViper())
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String(config.KeyServer, config.DefaultServer, "base URL of a running huddle server")
	rootCmd.PersistentFlags().String(config.KeyLogLevel, config.DefaultLogLevel, "log level (debug, info, warn, error)")
	_ = viper.BindPFlag(config.KeyServer, rootCmd.PersistentFlags().Lookup(config.KeyServer))
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup(config.KeyLogLevel))
}

func tasksCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			tasks, err := client.New(viper.GetString(config.KeyServer)).ListTasks(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(tasks)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Task", "Done"})
			for _, t := range tasks {
				done := ""
				if t.Completed {
					done = "x"
				}
				tw.AppendRow(table.Row{t.ID, t.Task, done})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openStore connects to the engine the store url selected.
func openStore(ctx context.Context, cfg config.Store, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Engine {
	case config.EngineMongo:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongostore.Open(ctx, cfg.Target, logger)
	case config.EngineSQLite:
		return sqlite.Open(cfg.Target, logger)
	default:
		return nil, fmt.Errorf("unknown store engine %q", cfg.Engine)
	}
}
