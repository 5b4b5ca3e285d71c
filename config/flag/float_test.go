package flag

import (
	"testing"

	"github.com/achilleasa/hessian2/config/store"
)

func TestFloatFlags(t *testing.T) {
	var s store.Store
	s.SetKeys(1, "ratio", map[string]string{"f32": "0.5", "f64": "1e-3", "bad": "half"})

	f32 := NewFloat32(&s, "ratio/f32")
	waitForChange(t, f32.ChangeChan())
	if got := f32.Get(); got != 0.5 {
		t.Fatalf("expected float32 flag to be 0.5; got %f", got)
	}

	f64 := NewFloat64(&s, "ratio/f64")
	waitForChange(t, f64.ChangeChan())
	if got := f64.Get(); got != 0.001 {
		t.Fatalf("expected float64 flag to be 0.001; got %f", got)
	}

	s.SetKey(2, "ratio/f64", "2.5")
	waitForChange(t, f64.ChangeChan())
	if got := f64.Get(); got != 2.5 {
		t.Fatalf("expected float64 flag to be 2.5; got %f", got)
	}

	expectNoChange(t, NewFloat32(&s, "ratio/bad").ChangeChan())
	expectNoChange(t, NewFloat64(&s, "ratio/bad").ChangeChan())
}
