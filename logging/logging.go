package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// InitLogger sets the level of the process-wide logger.
func InitLogger(level logrus.Level) {
	GetLogger().SetLevel(level)
}

// GetLogger returns the process-wide logger, creating it on first use.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		logger = newLogger()
	})
	return logger
}
