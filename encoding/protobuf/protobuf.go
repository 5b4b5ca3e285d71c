// Package protobuf provides a codec for encoding and decoding of data using protocol buffers.
//
// Values that are not protocol buffer messages are carried as a
// google.protobuf.Value when they consist of nil, booleans, numbers, strings,
// byte slices, []interface{} and map[string]interface{}.
package protobuf

import (
	"errors"

	"github.com/achilleasa/hessian2/encoding"
	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errSrcNotProtobuf = errors.New("marshal target does not implement proto.Message and cannot be converted to a protobuf value")
	errDstNotProtobuf = errors.New("unmarshal target does not implement proto.Message")
)

type protobufCodec struct{}

func (c *protobufCodec) Name() string {
	return "protobuf"
}

func (c *protobufCodec) ContentType() string {
	return "application/x-protobuf"
}

func (c *protobufCodec) Marshaler() encoding.Marshaler {
	return func(value interface{}) ([]byte, error) {
		srcMsg, valid := value.(proto.Message)
		if !valid {
			pbValue, err := structpb.NewValue(value)
			if err != nil {
				return nil, errSrcNotProtobuf
			}
			srcMsg = pbValue
		}

		return proto.Marshal(srcMsg)
	}
}

func (c *protobufCodec) Unmarshaler() encoding.Unmarshaler {
	return func(data []byte, target interface{}) error {
		if dstAny, isAny := target.(*interface{}); isAny {
			pbValue := &structpb.Value{}
			if err := proto.Unmarshal(data, pbValue); err != nil {
				return err
			}
			*dstAny = pbValue.AsInterface()
			return nil
		}

		dstMsg, valid := target.(proto.Message)
		if !valid {
			return errDstNotProtobuf
		}
		return proto.Unmarshal(data, dstMsg)
	}
}

// Codec returns a codec that implements encoding and decoding of protocol buffers.
func Codec() encoding.Codec {
	return &protobufCodec{}
}

func init() {
	encoding.Register(Codec)
}
