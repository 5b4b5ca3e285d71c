package hessian

import (
	"testing"

	dubbo "github.com/apache/dubbo-go-hessian2"
	"github.com/stretchr/testify/require"
)

var interopValues = []interface{}{
	nil,
	true,
	false,
	int32(7),
	int32(-300),
	int32(0x7fffffff),
	int64(1) << 40,
	2.5,
	3.14159,
	"hello",
	"日本語",
	[]byte{1, 2, 3},
}

func TestInteropDecodeOurs(t *testing.T) {
	for _, v := range interopValues {
		data := mustMarshal(t, v)

		decoded, err := dubbo.NewDecoder(data).Decode()
		require.NoError(t, err, "value %#v", v)
		require.Equal(t, v, decoded, "value %#v", v)
	}
}

func TestInteropDecodeTheirs(t *testing.T) {
	for _, v := range interopValues {
		enc := dubbo.NewEncoder()
		require.NoError(t, enc.Encode(v), "value %#v", v)

		decoded, err := Parse(enc.Buffer())
		require.NoError(t, err, "value %#v", v)
		require.Equal(t, v, decoded, "value %#v", v)
	}
}
