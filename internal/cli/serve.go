package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/agentwriter-backend/internal/app"
)

// ServeCmd runs the HTTP API and, unless --no-workers is set, the pipeline
// workers and stuck-job monitor in the same process.
func ServeCmd() *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and pipeline workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := app.ModeServe
			if noWorkers {
				mode = app.ModeAPI
			}
			return runProcess(cmd.Context(), mode)
		},
	}
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve the API only; jobs are consumed by separate worker processes")
	return cmd
}

// WorkerCmd runs pipeline workers and the stuck-job monitor without the API.
func WorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run pipeline workers only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), app.ModeWorker)
		},
	}
}

func runProcess(parent context.Context, mode app.Mode) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, mode)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		closeApp(a)
		return err
	}
	runErr := a.Run(ctx)
	if runErr != nil {
		a.Log.Error("Process stopped", "error", runErr)
	}
	closeErr := closeApp(a)
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func closeApp(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	return a.Close(ctx)
}
