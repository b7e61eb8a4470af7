package xerrors

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

type stackPCs interface{ StackPCs() []uintptr }

func topFunc(t *testing.T, pcs []uintptr) string {
	t.Helper()
	if len(pcs) == 0 {
		t.Fatal("empty stack")
	}
	fr, _ := runtime.CallersFrames(pcs).Next()
	return fr.Function
}

func TestNew(t *testing.T) {
	for name, err := range map[string]error{
		"New":  New("content: no active snapshot"),
		"Newf": Newf("content: no %s snapshot", "active"),
	} {
		t.Run(name, func(t *testing.T) {
			if err.Error() != "content: no active snapshot" {
				t.Fatalf("Error() = %q", err.Error())
			}
			var s stackPCs
			if !errors.As(err, &s) {
				t.Fatal("no stack")
			}
			if fn := topFunc(t, s.StackPCs()); !strings.HasSuffix(fn, ".TestNew") {
				t.Fatalf("stack starts at %s, want the caller", fn)
			}
		})
	}
}

func TestWithStack(t *testing.T) {
	if WithStack(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	err := WithStack(fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) || err.Error() != fs.ErrNotExist.Error() {
		t.Fatalf("WithStack changed the error: %v", err)
	}
	if fn := topFunc(t, err.(stackPCs).StackPCs()); !strings.HasSuffix(fn, ".TestWithStack") {
		t.Fatalf("stack starts at %s", fn)
	}
}

func TestEnsureTrace(t *testing.T) {
	if EnsureTrace(nil) != nil {
		t.Fatal("nil should stay nil")
	}

	plain := errors.New("plain")
	traced := EnsureTrace(plain)
	if traced == plain {
		t.Fatal("plain error should gain a stack")
	}

	inner := New("inner")
	outer := Wrap(inner, "outer")
	if EnsureTrace(outer) != outer {
		t.Fatal("already traced chain should be returned as is")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Fatal("nil should stay nil")
	}

	err := Wrapf(Wrap(fs.ErrPermission, "read manifest"), "load bundle %s", "r42")
	if got, want := err.Error(), "load bundle r42: read manifest: "+fs.ErrPermission.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatal("cause lost")
	}

	pc := err.(interface{ PC() uintptr }).PC()
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if !strings.HasSuffix(fr.Function, ".TestWrap") || !strings.HasSuffix(fr.File, "xerrors_test.go") {
		t.Fatalf("pc points at %s (%s)", fr.Function, fr.File)
	}
}

type codeErr struct{ code int }

func (e *codeErr) Error() string { return "code" }

func TestAsThroughLayers(t *testing.T) {
	err := Wrap(WithStack(&codeErr{code: 503}), "check")
	var ce *codeErr
	if !errors.As(err, &ce) || ce.code != 503 {
		t.Fatalf("errors.As = %v", ce)
	}
}

func TestWrapperMarker(t *testing.T) {
	type marker interface{ IsXerrorsWrapper() }
	for _, err := range []error{New("a"), Wrap(errors.New("b"), "c")} {
		if _, ok := err.(marker); !ok {
			t.Fatalf("%T lacks the wrapper marker", err)
		}
	}
}
