package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// lineFormatter writes the entry message verbatim, one line per entry.
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	msg := entry.Message
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	return []byte(msg), nil
}

// AccessLog is the sink for completed-request lines. Concurrent calls to Log
// are serialized by the underlying logrus mutex so lines never interleave.
type AccessLog struct {
	logger *logrus.Logger
	file   *os.File
}

// NewAccessLog opens the access log. When console is set, lines go to stdout;
// when path is non-empty, lines are appended to that file. With neither, lines
// are discarded.
func NewAccessLog(path string, console bool) (*AccessLog, error) {
	a := &AccessLog{logger: logrus.New()}
	a.logger.SetFormatter(lineFormatter{})
	a.logger.SetLevel(logrus.InfoLevel)

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stdout)
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file: %w", err)
		}
		a.file = f
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		a.logger.SetOutput(io.Discard)
	case 1:
		a.logger.SetOutput(writers[0])
	default:
		a.logger.SetOutput(io.MultiWriter(writers...))
	}
	return a, nil
}

// NewAccessLogWriter builds a sink over an arbitrary writer.
func NewAccessLogWriter(w io.Writer) *AccessLog {
	a := &AccessLog{logger: logrus.New()}
	a.logger.SetFormatter(lineFormatter{})
	a.logger.SetOutput(w)
	return a
}

// Log writes one pre-formatted line.
func (a *AccessLog) Log(line string) {
	a.logger.Info(line)
}

// Close closes the log file, if any.
func (a *AccessLog) Close() error {
	if a.file == nil {
		return nil
	}
	return a.file.Close()
}
