package http

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Supported Content-Encoding values.
const (
	encodingIdentity = ""
	encodingGzip     = "gzip"
	encodingZstd     = "zstd"
	encodingLZ4      = "lz4"
	encodingS2       = "s2"
)

var supportedEncodings = []string{encodingZstd, encodingGzip, encodingLZ4, encodingS2}

var zstdEncoderPool = sync.Pool{
	New: func() interface{} {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("http: creating zstd encoder: %v", err))
		}
		return encoder
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() interface{} {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("http: creating zstd decoder: %v", err))
		}
		return decoder
	},
}

func isSupportedEncoding(encoding string) bool {
	if encoding == encodingIdentity {
		return true
	}
	for _, supported := range supportedEncodings {
		if encoding == supported {
			return true
		}
	}
	return false
}

// compress encodes data using the given content encoding.
func compress(encoding string, data []byte) ([]byte, error) {
	switch encoding {
	case encodingIdentity:
		return data, nil
	case encodingZstd:
		encoder := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(encoder)
		return encoder.EncodeAll(data, nil), nil
	case encodingS2:
		return s2.Encode(nil, data), nil
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case encodingGzip:
		w = gzip.NewWriter(&buf)
	case encodingLZ4:
		w = lz4.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress reverses compress.
func decompress(encoding string, data []byte) ([]byte, error) {
	switch encoding {
	case encodingIdentity:
		return data, nil
	case encodingZstd:
		decoder := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(decoder)
		return decoder.DecodeAll(data, nil)
	case encodingS2:
		return s2.Decode(nil, data)
	case encodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return readAll(r)
	case encodingLZ4:
		return readAll(lz4.NewReader(bytes.NewReader(data)))
	}
	return nil, fmt.Errorf("unsupported content encoding %q", encoding)
}

// negotiateEncoding picks a supported encoding from an Accept-Encoding header.
// Quality values are ignored; the first supported entry wins.
func negotiateEncoding(acceptEncoding string) string {
	for _, entry := range strings.Split(acceptEncoding, ",") {
		encoding := strings.TrimSpace(strings.SplitN(entry, ";", 2)[0])
		if encoding != encodingIdentity && isSupportedEncoding(encoding) {
			return encoding
		}
	}
	return encodingIdentity
}
