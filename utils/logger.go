package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

// LogOptions controls where the two loggers write.
type LogOptions struct {
	Level     string
	Dir       string
	MaxAgeDay int
}

func init() {
	// packages used from tests must never hit a nil logger
	InitLogger()
}

// InitLogger sets up console-only loggers.
func InitLogger() {
	_ = InitLoggerWithOptions(LogOptions{})
}

// InitLoggerWithOptions sets up the loggers and, when Dir is set, tees both
// into a daily rotated file.
func InitLoggerWithOptions(opts LogOptions) error {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	var infoOut io.Writer = os.Stdout
	var errOut io.Writer = os.Stderr

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return err
		}
		maxAge := opts.MaxAgeDay
		if maxAge <= 0 {
			maxAge = 7
		}
		rotator, err := rotatelogs.New(
			filepath.Join(opts.Dir, "backoffice.%Y%m%d.log"),
			rotatelogs.WithLinkName(filepath.Join(opts.Dir, "backoffice.log")),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(time.Duration(maxAge)*24*time.Hour),
		)
		if err != nil {
			return err
		}
		infoOut = io.MultiWriter(os.Stdout, rotator)
		errOut = io.MultiWriter(os.Stderr, rotator)
	}

	InfoLogger.SetOutput(infoOut)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ErrorLogger.SetOutput(errOut)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	InfoLogger.SetLevel(level)
	ErrorLogger.SetLevel(logrus.WarnLevel)
	return nil
}
