package transport

import "testing"

func TestHandlerFunc(t *testing.T) {
	called := false
	f := HandlerFunc(func(_ ImmutableMessage, _ Message) {
		called = true
	})

	f.Process(nil, nil)

	if !called {
		t.Fatalf("expected wrapped HandlerFunc to call f(req, res)")
	}
}

func TestModeString(t *testing.T) {
	specs := map[Mode]string{
		ModeServer: "server",
		ModeClient: "client",
		Mode(42):   "unknown",
	}

	for mode, exp := range specs {
		if got := mode.String(); got != exp {
			t.Errorf("expected mode %d to be %q; got %q", mode, exp, got)
		}
	}
}
