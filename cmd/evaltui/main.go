package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"drive-eval/backend/app/watch"
	"drive-eval/backend/config"
	"drive-eval/backend/global"
	"drive-eval/backend/initialize"
	"drive-eval/cmd/evaltui/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logPath    string
		exportDir  string
	)
	cmd := &cobra.Command{
		Use:          "evaltui",
		Short:        "Terminal client for driving evaluations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, logPath, exportDir)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	cmd.Flags().StringVar(&logPath, "log", "logs/evaltui.log", "log file; the terminal belongs to the UI")
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "directory PDF reports are saved to")
	return cmd
}

func run(ctx context.Context, configPath, logPath, exportDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Log.Path != "" {
		logPath = cfg.Log.Path
	}
	logCloser, err := initialize.InitLogger(logPath, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	app, err := initialize.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var changes <-chan watch.Change
	if cfg.Storage.Driver == "csv" && cfg.Watch.Enabled {
		w, err := watch.NewTableWatcher([]string{cfg.Storage.AccountsFile, cfg.Storage.RecordsFile}, 200*time.Millisecond)
		if err != nil {
			global.Logger.Warn().Err(err).Msg("live refresh disabled")
		} else {
			defer w.Close()
			changes = w.Changes()
		}
	}

	model := ui.NewRootModel(ui.NewSession(app), changes, exportDir)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
