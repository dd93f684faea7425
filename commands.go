package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stagebased/config"
	"stagebased/db"
	"stagebased/models"
	"stagebased/router"
	"stagebased/workers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// inlineEngine runs every task synchronously; used by the one-shot commands.
func inlineEngine() *workers.Engine {
	q := workers.NewQueue(config.WorkersConfig{Eager: true}, state.log)
	return workers.NewEngineFromConfig(state.conf, state.db, q, state.log, nil)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and task workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(state.conf.AuthTokens) == 0 {
			state.log.Warn().Msg("no auth_tokens configured: the API accepts stored user tokens only")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		queue := workers.NewQueue(state.conf.Workers, state.log)
		engine := workers.NewEngineFromConfig(state.conf, state.db, queue, state.log, reg)
		queue.Start(ctx)
		defer queue.Stop()
		workers.StartMetricsSweeper(ctx, engine, state.conf.MetricsInterval)

		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		router.Initialize(r, state.conf, engine, reg, state.log)

		srv := &http.Server{
			Addr:              ":" + state.conf.ApiPort,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			state.log.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		state.log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <subscription-id>",
	Short: "Dispatch the next message of one subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := inlineEngine().AdvanceOne(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (sequence %d)\n", res.SubscriptionID, res.Outcome, res.SequenceSent)
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Metrics commands",
}

var metricsFireCmd = &cobra.Command{
	Use:   "fire",
	Short: "Fire the scheduled metrics sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := inlineEngine().ScheduledMetrics(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var metricsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the metrics this service emits",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := inlineEngine().AvailableMetrics()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Remote schedule commands",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <subscription-id>",
	Short: "Register the subscription's recurring callback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := inlineEngine().ScheduleCreate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scheduler_schedule_id: %s\n", id)
		return nil
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <subscription-id>",
	Short: "Disable the subscription's recurring callback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		done, err := inlineEngine().ScheduleDisable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !done {
			fmt.Fprintln(cmd.OutOrStdout(), "no remote schedule registered")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "disabled")
		return nil
	},
}

var userAdmin bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "API user commands",
}

var userTokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Create the user if missing and print its API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, token, err := models.EnsureUserToken(state.db, args[0])
		if err != nil {
			return err
		}
		if userAdmin && !user.Admin {
			if err := state.db.Model(&user).Update("admin", true).Error; err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), token.Key)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Migrate(state.db); err != nil {
			return err
		}
		state.log.Info().Msg("migration complete")
		return nil
	},
}

func init() {
	metricsCmd.AddCommand(metricsFireCmd, metricsListCmd)
	scheduleCmd.AddCommand(scheduleCreateCmd, scheduleDisableCmd)
	userTokenCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant admin rights, allowing the user to issue tokens")
	userCmd.AddCommand(userTokenCmd)
}
