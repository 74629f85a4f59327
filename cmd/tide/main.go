package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/denismitr/tide"
	"github.com/denismitr/tide/internal/cli"
	"github.com/denismitr/tide/internal/logger"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
)

const prefix = "tide: "

var (
	configPath string
	envFile    string
	timeout    time.Duration
	printSQL   bool
	debug      bool
	noColor    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tide",
		Short:         "Batch aware schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.LoadEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", cli.DefaultConfigFile, "Path to the yaml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", cli.DefaultEnvFile, "Dotenv file loaded before the config is read")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Time limit for a single command")
	rootCmd.PersistentFlags().BoolVar(&printSQL, "sql", false, "Print executed SQL")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(downCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(unlockCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(aurora.Red(prefix), err.Error())
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file stub",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.InitCfg(configPath); err != nil {
				return err
			}

			fmt.Println(aurora.Green(prefix), "created", configPath)
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var noDown bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create empty up and down files for a new migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				files, err := app.CreateMigration(args[0], !noDown)
				if err != nil {
					return err
				}

				for _, f := range files {
					fmt.Println(aurora.Green(prefix), "created", f)
				}

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noDown, "no-down", false, "Create only the up file")

	return cmd
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration as a new batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				result, err := app.Up(ctx)
				printResult("migrated", result, err)
				return err
			})
		},
	}
}

func downCmd() *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest batch or every batch above --target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				result, err := app.Down(ctx, target)
				printResult("rolled back", result, err)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&target, "target", -1, "Roll back every batch greater than this one, 0 rolls back everything")

	return cmd
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Roll back everything and apply all migrations again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				result, err := app.Refresh(ctx)
				printResult("rolled back", tide.Result{Status: result.Status, Migrated: result.RolledBack}, nil)
				printResult("migrated", tide.Result{Status: result.Status, Migrated: result.Migrated, Batch: result.Batch}, err)
				return err
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				entries, err := app.Status(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "NAME\tCONNECTION\tSTATUS\tBATCH\tAPPLIED AT")

				for _, e := range entries {
					conn := e.Connection
					if conn == "" {
						conn = "default"
					}

					status, batch, appliedAt := "pending", "-", "-"
					if e.Applied {
						status = "applied"
						batch = fmt.Sprintf("%d", e.Batch)
						appliedAt = e.MigratedAt.Format("2006-01-02 15:04:05")
					}

					if e.Orphan {
						status = "applied, no file"
					}

					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, conn, status, batch, appliedAt)
				}

				return w.Flush()
			})
		},
	}
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Release a lock left behind by a failed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *cli.App) error {
				return app.Unlock(ctx)
			})
		},
	}
}

func withApp(fn func(ctx context.Context, app *cli.App) error) (err error) {
	cfg, err := cli.ConfigFromYaml(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lg := newLogger()

	app, closer, err := cli.New(ctx, cfg, lg, loggerOption())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, app)
}

func newLogger() logger.Logger {
	if noColor {
		return logger.NewBWLogger(log.New(os.Stdout, "", 0), printSQL, debug)
	}

	return logger.NewColorLogger(log.New(os.Stdout, "", 0), printSQL, debug)
}

func loggerOption() tide.OptionFunc {
	if noColor {
		return tide.UseLogger(log.New(os.Stdout, "", 0), printSQL, debug)
	}

	return tide.UseColorLogger(log.New(os.Stdout, "", 0), printSQL, debug)
}

func printResult(verb string, result tide.Result, err error) {
	writeResult(os.Stdout, verb, result, err)
}

// writeResult reports the names a run got through, a failed run still lists
// what was applied before the error
func writeResult(w io.Writer, verb string, result tide.Result, err error) {
	names := "nothing"
	if len(result.Migrated) > 0 {
		names = strings.Join(result.Migrated, ", ")
	}

	if err != nil {
		if len(result.Migrated) > 0 {
			fmt.Fprintln(w, aurora.Yellow(prefix), verb, "before failure:", names)
		}

		return
	}

	if result.Batch > 0 {
		fmt.Fprintln(w, aurora.Green(prefix), verb, names, aurora.Gray(12, fmt.Sprintf("(batch %d)", result.Batch)))
		return
	}

	fmt.Fprintln(w, aurora.Green(prefix), verb, names)
}
