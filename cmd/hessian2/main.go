// Command hessian2 calls Hessian services, converts Hessian payloads to other
// encodings and runs a small demo service.
//
//	hessian2 [-config FILE] call [-user U -password P -proxy HOST:PORT] URL METHOD [JSON_ARG...]
//	hessian2 [-config FILE] dump [-format json|msgpack|gob|protobuf|hessian] [FILE]
//	hessian2 [-config FILE] serve [-addr :8080] [-path /echo] [-throttle]
//
// The log level is read from the "hessian2/log/level" configuration key
// (HESSIAN2_LOG_LEVEL in the environment).
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/config"
)

var errUsage = errors.New("usage: hessian2 [-config FILE] call|dump|serve [ARGS...]")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("hessian2")
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hessian2", flag.ContinueOnError)
	cfgFile := fs.String("config", "", "TOML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cfgFile != "" {
		if _, err := config.LoadFile(*cfgFile); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
	}
	initLogger()

	if fs.NArg() == 0 {
		return errUsage
	}

	cmdArgs := fs.Args()[1:]
	switch fs.Arg(0) {
	case "call":
		return runCall(cmdArgs, stdout)
	case "dump":
		return runDump(cmdArgs, stdin, stdout)
	case "serve":
		return runServe(cmdArgs)
	default:
		return fmt.Errorf("unknown command %q; %w", fs.Arg(0), errUsage)
	}
}

func initLogger() {
	level := zerolog.InfoLevel
	f := config.StringFlag("hessian2/log/level")
	defer f.CancelDynamicUpdates()
	if f.HasValue() && f.Get() != "" {
		if parsed, err := zerolog.ParseLevel(f.Get()); err == nil {
			level = parsed
		}
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).Level(level).With().Timestamp().Str("app", "hessian2").Logger()
}
