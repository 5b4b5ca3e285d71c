package hessian

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type codedError struct {
	code string
}

func (e *codedError) Error() string     { return "coded failure" }
func (e *codedError) FaultCode() string { return e.code }

func TestEncodeCall(t *testing.T) {
	data, err := EncodeCall("echo", "hello")
	require.NoError(t, err)
	require.Equal(t, cat('H', 0x02, 0x00, 'C', 0x04, "echo", 0x91, 0x05, "hello"), data)

	call, err := DecodeCall(data)
	require.NoError(t, err)
	require.Equal(t, &Call{Method: "echo", Args: []interface{}{"hello"}}, call)
}

func TestCallArgumentsShareTables(t *testing.T) {
	m := map[string]int{"k": 1}
	data, err := EncodeCall("pair", m, m)
	require.NoError(t, err)
	require.Equal(t, cat('H', 0x02, 0x00, 'C', 0x04, "pair", 0x92, 'H', 0x01, "k", 0x91, 'Z', 0x51, 0x90), data)

	call, err := DecodeCall(data)
	require.NoError(t, err)
	require.Len(t, call.Args, 2)
	call.Args[0].(map[interface{}]interface{})["x"] = 1
	require.Contains(t, call.Args[1], "x")
}

func TestEchoScenario(t *testing.T) {
	args := []interface{}{"hello", 42, []interface{}{1.5, true, nil}, map[string]interface{}{"nested": "value"}}
	req, err := EncodeCall("echo", args...)
	require.NoError(t, err)

	call, err := DecodeCall(req)
	require.NoError(t, err)
	require.Equal(t, "echo", call.Method)
	require.Equal(t, []interface{}{
		"hello",
		int32(42),
		[]interface{}{1.5, true, nil},
		map[interface{}]interface{}{"nested": "value"},
	}, call.Args)

	res, err := EncodeReply(call.Args)
	require.NoError(t, err)
	require.Equal(t, []byte{'H', 0x02, 0x00, 'R'}, res[:4])

	v, err := DecodeReply(res)
	require.NoError(t, err)
	require.Equal(t, call.Args, v)
}

func TestReplyWithFalse(t *testing.T) {
	data, err := EncodeReply(false)
	require.NoError(t, err)
	require.Equal(t, []byte{'H', 0x02, 0x00, 'R', 'F'}, data)

	v, err := DecodeReply(data)
	require.NoError(t, err)
	require.Equal(t, false, v)

	v, err = Parse([]byte{'F'})
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestFaults(t *testing.T) {
	tests := []struct {
		code    string
		message string
		detail  interface{}
		want    string
	}{
		{GenericFaultCode, "boom", nil, "boom"},
		{"ServiceException", "no such method", nil, "ServiceException - no such method"},
		{"ProtocolException", "bad", map[string]interface{}{"at": 3}, "ProtocolException - bad"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			data, err := EncodeFault(tt.code, tt.message, tt.detail)
			require.NoError(t, err)
			require.Equal(t, []byte{'F', 'H'}, data[:2])

			for _, decode := range []func([]byte) (interface{}, error){Parse, DecodeReply} {
				_, err = decode(data)
				var fault *Fault
				require.ErrorAs(t, err, &fault)
				require.Equal(t, tt.want, err.Error())
				require.Equal(t, tt.code, fault.Code)
				require.Equal(t, tt.message, fault.Message)
				if tt.detail != nil {
					require.Equal(t, map[interface{}]interface{}{"at": int32(3)}, fault.Detail)
				}
			}
		})
	}
}

func TestFaultInsideEnvelope(t *testing.T) {
	data := cat('H', 0x02, 0x00, 'F', 'H', 0x04, "code", 0x01, "X", 0x07, "message", 0x01, "y", 'Z')
	_, err := DecodeReply(data)
	require.EqualError(t, err, "X - y")

	data = cat('H', 0x02, 0x00, 'R', 'F', 'H', 0x04, "code", 0x01, "X", 0x07, "message", 0x01, "y", 'Z')
	_, err = DecodeReply(data)
	require.EqualError(t, err, "X - y")
}

func TestEncodeError(t *testing.T) {
	data, err := EncodeError(errors.New("plain failure"))
	require.NoError(t, err)
	_, err = Parse(data)
	require.EqualError(t, err, "plain failure")

	data, err = EncodeError(fmt.Errorf("wrapped: %w", &codedError{code: "BusyException"}))
	require.NoError(t, err)
	_, err = Parse(data)
	require.EqualError(t, err, "BusyException - wrapped: coded failure")

	relayed := &Fault{Code: "Remote", Message: "gone", Detail: "trace"}
	data, err = EncodeError(relayed)
	require.NoError(t, err)
	_, err = Parse(data)
	require.Equal(t, relayed, err)
}

func TestDecodeCallErrors(t *testing.T) {
	_, err := DecodeCall([]byte{0x91})
	require.ErrorIs(t, err, ErrProtocol)

	res, err := EncodeReply("x")
	require.NoError(t, err)
	_, err = DecodeCall(res)
	require.ErrorIs(t, err, ErrProtocol)

	req, err := EncodeCall("m")
	require.NoError(t, err)
	_, err = DecodeReply(req)
	require.ErrorIs(t, err, ErrProtocol)
}
