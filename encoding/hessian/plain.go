package hessian

import (
	"fmt"
	"time"
)

// Plain converts a decoded value into a tree made of nil, bool, int32,
// int64, float64, string, []byte, []interface{} and map[string]interface{}
// so that it can be handed to codecs with a narrower data model. Map keys
// are printed with fmt, objects and records become maps and times are
// formatted as RFC 3339.
func Plain(v interface{}) (interface{}, error) {
	return plain(v, 0)
}

func plain(v interface{}, depth int) (interface{}, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}

	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			p, err := plain(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			p, err := plain(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = p
		}
		return out, nil
	case *Object:
		out := make(map[string]interface{}, len(val.Fields))
		for _, f := range val.Fields {
			p, err := plain(f.Value, depth+1)
			if err != nil {
				return nil, err
			}
			out[f.Name] = p
		}
		return out, nil
	case *Record:
		out := make(map[string]interface{}, len(val.Values))
		for k, item := range val.Map() {
			p, err := plain(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	case *Call:
		args, err := plain(val.Args, depth+1)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"method": val.Method, "args": args}, nil
	}
	return v, nil
}
