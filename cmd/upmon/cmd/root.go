package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HaPhanBaoMinh/upmon/internal/app"
	"github.com/HaPhanBaoMinh/upmon/internal/common"
	"github.com/HaPhanBaoMinh/upmon/internal/config"
	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/infrastructure/httpapi"
	"github.com/HaPhanBaoMinh/upmon/internal/infrastructure/mock"
	"github.com/HaPhanBaoMinh/upmon/internal/log"
	"github.com/HaPhanBaoMinh/upmon/internal/metrics"
	"github.com/HaPhanBaoMinh/upmon/internal/poller"
	"github.com/HaPhanBaoMinh/upmon/internal/reconcile"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "upmon",
	Short: "Terminal dashboard for service health and latency",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting upmon",
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.Info("Using config", "config", fmt.Sprintf("%+v", *conf))

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer log.Close()

		logger := log.Logger()

		err := common.SetMaxProcs()
		if err != nil {
			logger.Error(err, "failed to set max procs")
		}

		err = common.SetMemLimit()
		if err != nil {
			logger.Error(err, "failed to set mem limit")
		}

		// Listen to sigterm and interrupt signals
		ctx, cancel := context.WithCancel(common.SetupSignalHandler(context.Background()))
		defer cancel()

		return run(ctx, conf)
	},
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultFile(), "config file")

	flags := rootCmd.Flags()
	flags.Bool("mock", false, "use the built-in simulated backend")
	flags.String("api", httpapi.DefaultBaseURL, "ServiceStatus API base url")
	flags.Duration("interval", poller.DefaultInterval, "poll interval")
	flags.String("empty-batch", string(reconcile.EmptyBatchRetain), "what an empty poll means: retain or delete")
	flags.String("log-file", "", "write logs to this file, logs are dropped when empty")
	flags.Int("log-level", 0, "log verbosity, higher is chattier")
	flags.Int("metrics-port", 0, "serve prometheus metrics on this port, 0 disables")
}

func newRepo(conf *config.Config) (domain.StatusRepo, error) {
	if conf.Mock {
		return mock.New(clockwork.NewRealClock(), time.Now().UnixNano()), nil
	}

	repo, err := httpapi.New(httpapi.Config{
		BaseURL:  conf.API.BaseURL,
		Timeout:  conf.API.Timeout,
		QPS:      conf.API.QPS,
		Burst:    conf.API.Burst,
		Attempts: conf.API.Retry.Attempts,
		Delay:    conf.API.Retry.Delay,
	})
	if err != nil {
		return nil, err
	}

	return repo.WithLogger(log.Logger().WithName("httpapi")), nil
}

func run(ctx context.Context, conf *config.Config) error {
	logger := log.Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pollMetrics, err := poller.NewMetrics(registry, poller.MetricsConfig{Namespace: metrics.Namespace})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	repo, err := newRepo(conf)
	if err != nil {
		return fmt.Errorf("failed to create status repo: %w", err)
	}

	policy, err := reconcile.ParseEmptyBatchPolicy(conf.Poll.EmptyBatch)
	if err != nil {
		return err
	}

	sched := poller.New(repo, poller.Config{
		Interval:   conf.Poll.Interval,
		Timeout:    conf.Poll.Timeout,
		EmptyBatch: policy,
	}).WithLogger(logger.WithName("poller")).WithMetrics(pollMetrics)

	err = sched.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	defer sched.Stop()

	group, ctx := errgroup.WithContext(ctx)

	if conf.Metrics.Port > 0 {
		srv := metrics.CreatePrometheusServer(conf.Metrics, registry)

		group.Go(func() error {
			logger.V(1).Info("Serving metrics", "addr", srv.Addr)

			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		group.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		// stops the remaining goroutines once the UI exits
		defer sched.Stop()

		program := tea.NewProgram(app.New(sched), tea.WithAltScreen(), tea.WithContext(ctx))

		_, err := program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("ui: %w", err)
		}

		return errUIExited
	})

	err = group.Wait()
	if errors.Is(err, errUIExited) {
		err = nil
	}

	logger.V(1).Info("upmon stopped")

	return err
}

// errUIExited ends the group when the user quits.
var errUIExited = errors.New("ui exited")
