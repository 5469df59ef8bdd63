// Command aa-send builds, signs and submits ERC-4337 user operations from
// a Kernel smart account.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/zerodevapp/aa-sdk/config"
	"github.com/zerodevapp/aa-sdk/log"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	return runWith(args, os.Stdout, os.Stderr)
}

func runWith(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "aa-send",
		Usage:     "submit user operations from a Kernel account",
		Version:   fmt.Sprintf("%s (commit %s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			configFlag,
			verbosityFlag,
			logFormatFlag,
			keyFlag,
		},
		Commands: []*cli.Command{
			sendCommand,
			hashCommand,
			signCommand,
		},
		// Errors are reported by run.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// loadConfig reads the configuration named by --config and builds the
// logger from it, with the logging flags taking precedence.
func loadConfig(c *cli.Context) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet(logFormatFlag.Name) {
		cfg.Log.Format = c.String(logFormatFlag.Name)
	}
	level := log.ParseLevel(cfg.Log.Level)
	if c.IsSet(verbosityFlag.Name) {
		level = log.VerbosityToLevel(c.Int(verbosityFlag.Name))
	}
	logger := log.NewFormatted(c.App.ErrWriter, level, cfg.Log.Format)
	return cfg, logger, nil
}
