package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/dustin/go-humanize"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/HaPhanBaoMinh/upmon/internal/log"
)

const memLimitRatio = 0.9

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. A second signal exits the process.
func SetupSignalHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)

		select {
		case <-sigs:
		case <-ctx.Done():
			return
		}

		logger := log.Logger()
		logger.V(1).Info("Stop signal received")
		cancel()

		<-sigs
		logger.Info("Second stop signal, exiting")
		os.Exit(1)
	}()

	return ctx
}

func SetMaxProcs() error {
	logger := log.Logger()

	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.V(2).Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		return fmt.Errorf("set GOMAXPROCS: %w", err)
	}

	logger.V(1).Info("GOMAXPROCS configured", "procs", runtime.GOMAXPROCS(0))

	return nil
}

func SetMemLimit() error {
	logger := log.Logger()

	limit, err := memlimit.SetGoMemLimit(memLimitRatio)
	if err != nil {
		logger.V(1).Info("GOMEMLIMIT left unset", "reason", err.Error())

		return nil
	}

	logger.V(1).Info("GOMEMLIMIT configured", "ratio", memLimitRatio, "limit", humanize.IBytes(uint64(limit)))

	return nil
}
