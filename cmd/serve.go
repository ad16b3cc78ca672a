package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address (default is server.listen)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))

	serveCmd.Flags().Bool("warmup", false, "precompute job embeddings before serving")
}

func serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	jobs, err := catalog.LoadJobsCSV(e.cfg.Data.Jobs)
	if err != nil {
		e.logger.Warn("job catalog not loaded, job ids cannot be referenced", zap.Error(err))
	}

	if warm, _ := cmd.Flags().GetBool("warmup"); warm && len(jobs) > 0 {
		if _, err := e.service.WarmupJobs(ctx, jobs); err != nil {
			return err
		}
	}

	srv := server.New(e.service, jobs, e.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(e.cfg.Server.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	e.logger.Info("shutting down the api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
