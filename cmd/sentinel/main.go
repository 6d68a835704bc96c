// Sentinel screens bank-statement extractions for financial-crime risk.
//
// Usage:
//
//	sentinel screen [flags] FILE|DIR...
//	sentinel history [flags]
//	sentinel stats [flags]
//
// Configuration is read from SENTINEL_* environment variables, optionally
// overlaid by a YAML file given with --config. Flags override both.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/savegress/sentinel/internal/config"
	"github.com/savegress/sentinel/internal/logger"
)

// errScreeningFailed signals that at least one document could not be read.
// The outcome has already been printed, so main only sets the exit code.
var errScreeningFailed = errors.New("one or more documents could not be screened")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errScreeningFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	decimal.MarshalJSONWithoutQuotes = true

	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := args[0], args[1:]
	switch command {
	case "screen":
		return runScreen(ctx, rest)
	case "history":
		return runHistory(ctx, rest)
	case "stats":
		return runStats(ctx, rest)
	case "help", "-h", "--help":
		printUsage()
		return nil
	}
	printUsage()
	return fmt.Errorf("unknown command %q", command)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: sentinel <command> [flags]

Commands:
  screen    Screen extraction files and print one verdict per file
  history   List archived outcomes, newest first
  stats     Summarize the outcome archive

Run 'sentinel <command> --help' for command flags.
`)
}

// commonFlags are shared by every command
type commonFlags struct {
	configPath string
	archive    string
	logLevel   string
	logFormat  string
	help       bool
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "YAML configuration file")
	flagSet.StringVar(&c.archive, "archive", "", "outcome archive database (overrides config)")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	flagSet.BoolVarP(&c.help, "help", "h", false, "show help")
}

// load resolves configuration and installs the logger into ctx
func (c *commonFlags) load(ctx context.Context) (context.Context, *config.Config, error) {
	var cfg *config.Config
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return ctx, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.LoadFromEnv()
	}

	if c.archive != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.Path = c.archive
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	return logger.WithContext(ctx, log), cfg, nil
}

func printHelp(flagSet *pflag.FlagSet, usage string) {
	fmt.Fprint(os.Stderr, usage)
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

// parseFlags parses args and reports whether help was requested
func parseFlags(flagSet *pflag.FlagSet, common *commonFlags, usage string, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet, usage)
			return true, nil
		}
		return false, err
	}
	if common.help {
		printHelp(flagSet, usage)
		return true, nil
	}
	return false, nil
}
