package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/achilleasa/hessian2/client"
	"github.com/achilleasa/hessian2/encoding/hessian"
)

func runCall(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	user := fs.String("user", "", "basic auth user")
	password := fs.String("password", "", "basic auth password")
	proxy := fs.String("proxy", "", "HTTP proxy as host:port")
	timeout := fs.Duration("timeout", 30*time.Second, "call timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: hessian2 call [flags] URL METHOD [JSON_ARG...]")
	}

	callArgs, err := parseJSONArgs(fs.Args()[2:])
	if err != nil {
		return err
	}

	var opts []client.Option
	if *user != "" {
		opts = append(opts, client.WithBasicAuth(*user, *password))
	}
	if *proxy != "" {
		p, err := parseProxy(*proxy)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithProxy(p))
	}

	c, err := client.New(fs.Arg(0), opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancelFn := context.WithTimeout(context.Background(), *timeout)
	defer cancelFn()

	reply, err := c.Call(ctx, fs.Arg(1), callArgs...)
	if err != nil {
		return err
	}
	return writeJSON(stdout, reply)
}

// parseJSONArgs decodes each argument as a JSON document. Integral numbers
// become ints so that they are sent as Hessian ints or longs.
func parseJSONArgs(args []string) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		dec := json.NewDecoder(bytes.NewReader([]byte(arg)))
		dec.UseNumber()

		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = fromJSON(v)
	}
	return out, nil
}

func fromJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case []interface{}:
		for i, item := range val {
			val[i] = fromJSON(item)
		}
		return val
	case map[string]interface{}:
		for k, item := range val {
			val[k] = fromJSON(item)
		}
		return val
	default:
		return v
	}
}

func parseProxy(hostPort string) (client.Proxy, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return client.Proxy{}, fmt.Errorf("invalid proxy %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return client.Proxy{}, fmt.Errorf("invalid proxy port %q", portStr)
	}
	return client.Proxy{Host: host, Port: port}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	p, err := hessian.Plain(v)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
