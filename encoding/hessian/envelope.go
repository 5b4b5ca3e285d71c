package hessian

import (
	"errors"
	"fmt"
)

// GenericFaultCode is the fault code used for errors that carry no code of
// their own. Faults with this code surface their message unchanged.
const GenericFaultCode = "RuntimeError"

// FaultCoder is implemented by errors that choose the code of the fault
// they are reported as.
type FaultCoder interface {
	FaultCode() string
}

// Fault is a remote error decoded from a fault envelope.
type Fault struct {
	Code    string
	Message string
	Detail  interface{}
}

// Error returns the message of generic faults and "code - message" for
// everything else.
func (f *Fault) Error() string {
	if f.Code == GenericFaultCode || f.Code == "" {
		return f.Message
	}
	return fmt.Sprintf("%s - %s", f.Code, f.Message)
}

// FaultCode implements FaultCoder so that a relayed fault keeps its code.
func (f *Fault) FaultCode() string {
	return f.Code
}

// Call is a decoded call envelope.
type Call struct {
	Method string
	Args   []interface{}
}

func (e *Encoder) writeEnvelopeHeader(kind byte) {
	e.buf = append(e.buf, bcHeader, versionMajor, versionMinor, kind)
}

// EncodeCall returns a call envelope for method. All arguments share the
// reference, class and type tables of the message.
func EncodeCall(method string, args ...interface{}) ([]byte, error) {
	e := NewEncoder()
	e.writeEnvelopeHeader(bcCall)
	if err := e.writeStringValue(method); err != nil {
		return nil, err
	}
	e.writeInt(int32(len(args)))
	for _, arg := range args {
		if err := e.writeValue(arg); err != nil {
			return nil, err
		}
	}
	return e.buf, nil
}

// EncodeReply returns a reply envelope carrying v.
func EncodeReply(v interface{}) ([]byte, error) {
	e := NewEncoder()
	e.writeEnvelopeHeader(bcReply)
	if err := e.writeValue(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// EncodeFault returns a fault envelope. The detail entry is omitted when
// detail is nil.
func EncodeFault(code, message string, detail interface{}) ([]byte, error) {
	e := NewEncoder()
	e.buf = append(e.buf, bcFault, bcMapUntyped)
	e.refs.count++

	e.writeString("code")
	e.writeString(code)
	e.writeString("message")
	e.writeString(message)
	if detail != nil {
		e.writeString("detail")
		if err := e.writeValue(detail); err != nil {
			return nil, err
		}
	}
	e.buf = append(e.buf, bcEnd)
	return e.buf, nil
}

// EncodeError returns a fault envelope describing err. The code comes from
// a FaultCoder in the error chain and defaults to GenericFaultCode.
func EncodeError(err error) ([]byte, error) {
	code := GenericFaultCode
	var coder FaultCoder
	if errors.As(err, &coder) && coder.FaultCode() != "" {
		code = coder.FaultCode()
	}

	var detail interface{}
	message := err.Error()
	var f *Fault
	if errors.As(err, &f) {
		message = f.Message
		detail = f.Detail
	}
	return EncodeFault(code, message, detail)
}

// DecodeCall decodes a call envelope.
func DecodeCall(data []byte) (*Call, error) {
	d := NewDecoder(data)
	if !d.hasEnvelopeHeader() {
		return nil, d.protocolError(0, firstByte(data), errNotACall)
	}
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	call, ok := v.(*Call)
	if !ok {
		return nil, d.protocolError(3, firstByte(data[3:]), errNotACall)
	}
	return call, nil
}

// DecodeReply decodes a reply envelope, a bare fault or a bare value. A
// fault is returned as a *Fault error.
func DecodeReply(data []byte) (interface{}, error) {
	d := NewDecoder(data)
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if _, isCall := v.(*Call); isCall {
		return nil, d.protocolError(3, bcCall, errors.New("expected a reply, got a call"))
	}
	return v, nil
}

func firstByte(data []byte) byte {
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
