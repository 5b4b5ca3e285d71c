package server

import (
	"context"
	"fmt"
)

// Method implements a single service method.
type Method func(ctx context.Context, args []interface{}) (interface{}, error)

// Methods is a Handler that dispatches calls by method name. Calls to
// unknown methods fail with a *NoSuchMethodError.
type Methods map[string]Method

// Invoke runs the method registered under name.
func (m Methods) Invoke(ctx context.Context, name string, args []interface{}) (interface{}, error) {
	fn, exists := m[name]
	if !exists {
		return nil, &NoSuchMethodError{Method: name}
	}
	return fn(ctx, args)
}

// NoSuchMethodError is returned for calls to methods a service does not
// implement. It is reported with the NoSuchMethodFaultCode fault code.
type NoSuchMethodError struct {
	Method string
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("service has no method named %q", e.Method)
}

// FaultCode implements hessian.FaultCoder.
func (e *NoSuchMethodError) FaultCode() string {
	return NoSuchMethodFaultCode
}
