package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/achilleasa/hessian2/encoding"
	"github.com/achilleasa/hessian2/encoding/hessian"

	// Register the codecs offered by -format.
	_ "github.com/achilleasa/hessian2/encoding/gob"
	_ "github.com/achilleasa/hessian2/encoding/json"
	_ "github.com/achilleasa/hessian2/encoding/msgpack"
	_ "github.com/achilleasa/hessian2/encoding/protobuf"
)

func runDump(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	format := fs.String("format", "json", "output format: "+strings.Join(encoding.Names(), ", "))
	if err := fs.Parse(args); err != nil {
		return err
	}

	codec, err := encoding.Lookup(*format)
	if err != nil {
		return fmt.Errorf("format %q: %w", *format, err)
	}

	in := stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return dump(data, codec, stdout)
}

// dump decodes a Hessian stream and writes it out using codec. Every codec
// except Hessian receives the plain form of the decoded value.
func dump(data []byte, codec encoding.Codec, w io.Writer) error {
	v, err := hessian.Parse(data)
	if err != nil {
		return err
	}

	var out []byte
	switch {
	case codec.Name() != hessian.Codec().Name():
		if v, err = hessian.Plain(v); err != nil {
			return err
		}
		out, err = codec.Marshaler()(v)
	default:
		if call, isCall := v.(*hessian.Call); isCall {
			out, err = hessian.EncodeCall(call.Method, call.Args...)
		} else {
			out, err = codec.Marshaler()(v)
		}
	}
	if err != nil {
		return err
	}
	if _, err = w.Write(out); err != nil {
		return err
	}
	if codec.Name() == "json" {
		_, err = io.WriteString(w, "\n")
	}
	return err
}
