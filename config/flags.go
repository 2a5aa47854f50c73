package config

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"
)

// CliConfig holds the options that steer how configuration is loaded rather
// than the configuration itself.
type CliConfig struct {
	ConfigFile string
	Help       bool
}

// NewFlagSet declares the command-line options. Flags that name a
// configuration key are bound to it by LoadConfig.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.BoolP("debug", "d", false, "Enter debugging mode: log to stdout, one worker thread")
	fs.BoolP("help", "h", false, "Print a usage summary")
	fs.StringP("log-file", "l", "", "Log all requests to the given file")
	fs.IntP("port", "p", 8080, "Listen on the given port")
	fs.StringP("root", "r", ".", "Set root directory for the server")
	fs.IntP("queue-time", "t", 60, "Set queuing time in seconds")
	fs.IntP("threads", "n", 4, "Set number of threads")
	fs.StringP("policy", "s", "FCFS", "Set scheduling policy: FCFS or SJF")

	fs.String("config", "", "Path to a YAML config file")
	fs.String("host", "", "Listen on the given host")
	fs.String("home-dir", "", "Home directory used for ~ requests")
	fs.Int("queue-capacity", 0, "Maximum queued requests, 0 for unbounded")
	fs.String("queue-overflow", "reject", "What to do when the queue is full: reject or block")
	fs.Duration("conn-deadline", 30*time.Second, "Per-connection deadline for serving a request, 0 to disable")
	fs.Duration("read-timeout", 5*time.Second, "Deadline for reading a request line")
	return fs
}

// ParseArgs parses args into fs and extracts the loader options.
func ParseArgs(fs *pflag.FlagSet, args []string) (*CliConfig, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	cli := &CliConfig{}
	cli.ConfigFile, _ = fs.GetString("config")
	cli.Help, _ = fs.GetBool("help")
	return cli, nil
}

// PrintUsage writes the usage summary for fs.
func PrintUsage(w io.Writer, exec string, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "\nUSAGE: %s [Options]\n\nOptions:\n", exec)
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
}
