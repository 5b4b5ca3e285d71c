// Package msgpack provides a codec for encoding and decoding data using msgpack.
package msgpack

import (
	"github.com/achilleasa/hessian2/encoding"
	impl "gopkg.in/vmihailenco/msgpack.v2"
)

type msgpackCodec struct{}

func (c *msgpackCodec) Name() string {
	return "msgpack"
}

func (c *msgpackCodec) ContentType() string {
	return "application/msgpack"
}

func (c *msgpackCodec) Marshaler() encoding.Marshaler {
	return func(v interface{}) ([]byte, error) {
		return impl.Marshal(v)
	}
}

func (c *msgpackCodec) Unmarshaler() encoding.Unmarshaler {
	return func(data []byte, target interface{}) error {
		return impl.Unmarshal(data, target)
	}
}

// Codec returns a codec that implements encoding and decoding of data using msgpack.
func Codec() encoding.Codec {
	return &msgpackCodec{}
}

func init() {
	encoding.Register(Codec)
}
