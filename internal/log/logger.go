package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/HaPhanBaoMinh/upmon/help"
	"github.com/HaPhanBaoMinh/upmon/internal/config"
)

var (
	logger = logr.Discard()
	output io.Closer
)

// Init configures the process logger. Logs never go to stdout since the
// terminal is owned by the UI: they are written to conf.File, or dropped
// when no file is set.
func Init(conf config.Logs) error {
	loggerImpl := logrus.New()

	loggerImpl.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))

	out, err := openOutput(conf.File)
	if err != nil {
		return err
	}
	loggerImpl.SetOutput(out)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		loggerImpl.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
		})
	case config.EncoderTypeJson:
		loggerImpl.SetFormatter(&logrus.JSONFormatter{})
	default:
		_ = Close()
		return fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	logger = logrusr.New(loggerImpl, logrusr.WithReportCaller())

	return nil
}

func openOutput(file string) (io.Writer, error) {
	_ = Close()

	if file == "" {
		return io.Discard, nil
	}

	path := help.ExpandHome(file)

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	output = f

	return f, nil
}

// Close releases the log file, if any.
func Close() error {
	if output == nil {
		return nil
	}

	err := output.Close()
	output = nil

	return err
}

func Logger() logr.Logger {
	return logger
}
