package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"drive-eval/backend/app/models"
	"drive-eval/backend/app/services"
	"drive-eval/backend/app/watch"
	"drive-eval/backend/config"
	"drive-eval/backend/global"
	"drive-eval/backend/initialize"
	"drive-eval/backend/server"

	"github.com/spf13/cobra"
)

// cliActor is the identity of local administrative commands. Whoever can run
// the binary against the table files already controls them.
var cliActor = models.Account{Username: "cli", Role: models.RoleAdmin, Active: true, EvaluatorAccess: true}

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drive-eval",
		Short:         "Driving evaluation records: HTTP API and administration",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	root.AddCommand(newServeCmd(), newAccountsCmd(), newExportCmd())
	return root
}

// openApp loads configuration, sets up logging and wires the services.
func openApp(ctx context.Context) (*initialize.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logCloser, err := initialize.InitLogger(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	app, err := initialize.Build(ctx, cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	return app, func() {
		_ = app.Close()
		_ = logCloser.Close()
	}, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, done, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer done()

			if app.Cfg.Watch.Enabled && app.Cfg.Storage.Driver == "csv" {
				logTableChanges(ctx, []string{app.Cfg.Storage.AccountsFile, app.Cfg.Storage.RecordsFile})
			}
			srv := server.NewHTTPServer(app.Cfg.HTTP.Host, app.Cfg.HTTP.Port, app.Handler())
			return server.RunHTTPServer(ctx, srv)
		},
	}
}

// logTableChanges records rewrites of the table files, which includes
// writes by other processes sharing them.
func logTableChanges(ctx context.Context, paths []string) {
	w, err := watch.NewTableWatcher(paths, 200*time.Millisecond)
	if err != nil {
		global.Logger.Warn().Err(err).Msg("table watcher disabled")
		return
	}
	changes := w.Changes()
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	go func() {
		for c := range changes {
			global.Logger.Debug().Str("path", c.Path).Time("at", c.At).Msg("table file changed")
		}
	}()
}

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and change accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			accounts, err := app.AccountSvc.List(cliActor)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), accounts)
		},
	}

	var (
		role            string
		active          bool
		evaluatorAccess bool
	)
	set := &cobra.Command{
		Use:   "set <username>",
		Short: "Change role, active flag and evaluator access of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			change := services.AccountChange{Role: models.Role(role), Active: active}
			if cmd.Flags().Changed("evaluator-access") {
				change.EvaluatorAccess = &evaluatorAccess
			}
			a, err := app.AccountSvc.UpdateRoleAndActive(cliActor, args[0], change)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), []models.Account{*a})
		},
	}
	set.Flags().StringVar(&role, "role", "", "admin, evaluator or viewer")
	set.Flags().BoolVar(&active, "active", true, "whether the account may sign in")
	set.Flags().BoolVar(&evaluatorAccess, "evaluator-access", false, "whether an evaluator may start evaluations")
	_ = set.MarkFlagRequired("role")

	cmd.AddCommand(list, set)
	return cmd
}

func printAccounts(w io.Writer, accounts []models.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tACTIVE\tEVALUATOR ACCESS\tNAME\tVEHICLE")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\t%s\n", a.Username, a.Role, a.Active, a.EvaluatorAccess, a.Name, a.VehicleNumber)
	}
	return tw.Flush()
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records",
	}

	var out string
	pdf := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Render one record as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			app, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return writeFile(out, func(w io.Writer) (string, error) {
				return app.Exports.PDF(w, cliActor, id)
			})
		},
	}
	pdf.Flags().StringVarP(&out, "output", "o", "", "output file (default report-<id>.pdf)")

	var xlsxOut, owner string
	xlsx := &cobra.Command{
		Use:   "xlsx",
		Short: "Write all records to a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return writeFile(xlsxOut, func(w io.Writer) (string, error) {
				return "records.xlsx", app.Exports.XLSX(w, cliActor, models.RecordFilter{Owner: owner})
			})
		},
	}
	xlsx.Flags().StringVarP(&xlsxOut, "output", "o", "", "output file (default records.xlsx)")
	xlsx.Flags().StringVar(&owner, "owner", "", "only records of this user")

	cmd.AddCommand(pdf, xlsx)
	return cmd
}

// writeFile renders into a temporary file and moves it to path, or to the
// name returned by render when path is empty.
func writeFile(path string, render func(io.Writer) (string, error)) (err error) {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	tmp, err := os.CreateTemp(dir, ".drive-eval-export-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	name, err := render(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if path == "" {
		path = name
	}
	if path == "" {
		return errors.New("no output path")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
