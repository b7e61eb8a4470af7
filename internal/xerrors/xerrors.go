// Package xerrors attaches call-site information to errors. New and WithStack
// record a stack; Wrap records the single frame it was called from, so a
// chain of wraps reads like a trail through the code.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxDepth = 64

// stacked carries the stack at the point it was created.
type stacked struct {
	error
	pcs []uintptr
}

func (s *stacked) Unwrap() error       { return s.error }
func (s *stacked) StackPCs() []uintptr { return s.pcs }
func (s *stacked) IsXerrorsWrapper()   {}

// wrapped prefixes msg and remembers where the wrap happened.
type wrapped struct {
	cause error
	msg   string
	pc    uintptr
}

func (w *wrapped) Error() string     { return w.msg + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() error     { return w.cause }
func (w *wrapped) PC() uintptr       { return w.pc }
func (w *wrapped) IsXerrorsWrapper() {}

// skip counts frames above the exported function that called these helpers.
func stackAt(skip int) []uintptr {
	pcs := make([]uintptr, maxDepth)
	return pcs[:runtime.Callers(skip+3, pcs)]
}

func pcAt(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip+3, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

func New(msg string) error {
	return &stacked{error: errors.New(msg), pcs: stackAt(0)}
}

func Newf(format string, args ...any) error {
	return &stacked{error: fmt.Errorf(format, args...), pcs: stackAt(0)}
}

// WithStack records the caller's stack on err. nil stays nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stacked{error: err, pcs: stackAt(0)}
}

// EnsureTrace is WithStack unless something in the chain already has a stack.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var s interface{ StackPCs() []uintptr }
	if errors.As(err, &s) && len(s.StackPCs()) > 0 {
		return err
	}
	return &stacked{error: err, pcs: stackAt(0)}
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{cause: err, msg: msg, pc: pcAt(0)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{cause: err, msg: fmt.Sprintf(format, args...), pc: pcAt(0)}
}
