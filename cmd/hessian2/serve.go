package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/server"
	"github.com/achilleasa/hessian2/server/middleware/throttle"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "listen address")
	path := fs.String("path", "/echo", "service path")
	throttled := fs.Bool("throttle", false, "limit concurrent calls using the server/maxconcurrent and server/timeout settings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	handler, err := newDemoHandler(*throttled)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(*path, handler)
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() { errChan <- httpSrv.ListenAndServe() }()
	log.Info().Str("addr", *addr).Str("path", *path).Bool("throttle", *throttled).Msg("serve")

	select {
	case err = <-errChan:
	case <-ctx.Done():
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFn()
		err = httpSrv.Shutdown(shutdownCtx)
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// demoService answers echo, ping and fail calls.
func demoService() server.Methods {
	return server.Methods{
		"echo": func(_ context.Context, args []interface{}) (interface{}, error) {
			if len(args) == 1 {
				return args[0], nil
			}
			return args, nil
		},
		"ping": func(_ context.Context, _ []interface{}) (interface{}, error) {
			return "pong", nil
		},
		"fail": func(_ context.Context, args []interface{}) (interface{}, error) {
			return nil, fmt.Errorf("fail called with %d argument(s)", len(args))
		},
	}
}

func newDemoHandler(throttled bool) (http.Handler, error) {
	var opts []server.Option
	if throttled {
		opts = append(opts, server.WithMiddleware(throttle.FromConfig()))
	}
	return server.NewHTTPHandler(demoService(), opts...)
}
