package flag

import (
	"testing"
	"time"

	"github.com/achilleasa/hessian2/config/store"
)

func TestDurationFlag(t *testing.T) {
	var s store.Store
	s.SetKey(1, "server/timeout", "250ms")

	f := NewDuration(&s, "server/timeout")
	waitForChange(t, f.ChangeChan())
	if got := f.Get(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms; got %v", got)
	}

	s.SetKey(2, "server/timeout", "forever")
	expectNoChange(t, f.ChangeChan())
	if got := f.Get(); got != 250*time.Millisecond {
		t.Fatalf("expected invalid update to be ignored; got %v", got)
	}
}
