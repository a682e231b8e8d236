// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat/go-file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000 Z07:00"

type utcFormatter struct {
	logrus.Formatter
}

func (f utcFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Time = entry.Time.UTC()
	return f.Formatter.Format(entry)
}

// NewFormatter returns the text or JSON formatter used on every output.
func NewFormatter(json bool) logrus.Formatter {
	if json {
		return &utcFormatter{&logrus.JSONFormatter{TimestampFormat: timestampFormat}}
	}
	return &utcFormatter{&logrus.TextFormatter{
		TimestampFormat:  timestampFormat,
		FullTimestamp:    true,
		DisableColors:    true,
		QuoteEmptyFields: true,
	}}
}

// Setup sets level and formatter of the standard logger and sends it to
// stdout. When dir is not empty, entries are also written to
// dir/courier.log, rotated daily and kept for two weeks.
func Setup(level string, json bool, dir string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	formatter := NewFormatter(json)
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stdout)

	if dir == "" || dir == "-" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	logFile := filepath.Join(dir, "courier.log")
	writer, err := rotatelogs.New(
		logFile+".%Y%m%d",
		rotatelogs.WithLinkName(logFile),
		rotatelogs.WithMaxAge(14*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return err
	}

	logrus.AddHook(lfshook.NewHook(lfshook.WriterMap{
		logrus.DebugLevel: writer,
		logrus.InfoLevel:  writer,
		logrus.WarnLevel:  writer,
		logrus.ErrorLevel: writer,
		logrus.FatalLevel: writer,
		logrus.PanicLevel: writer,
	}, formatter))

	return nil
}
