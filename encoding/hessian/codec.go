package hessian

import "github.com/achilleasa/hessian2/encoding"

// ContentType is the media type of Hessian request and response bodies.
const ContentType = "application/binary"

type hessianCodec struct{}

func (c *hessianCodec) Name() string {
	return "hessian"
}

func (c *hessianCodec) ContentType() string {
	return ContentType
}

func (c *hessianCodec) Marshaler() encoding.Marshaler {
	return Marshal
}

func (c *hessianCodec) Unmarshaler() encoding.Unmarshaler {
	return Unmarshal
}

// Codec returns a codec that implements encoding and decoding of Hessian 2.0
// values.
func Codec() encoding.Codec {
	return &hessianCodec{}
}

func init() {
	encoding.Register(Codec)
}
