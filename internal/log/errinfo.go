package log

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

// implemented by xerrors values
type hasPC interface{ PC() uintptr }
type hasStack interface{ StackPCs() []uintptr }

// errorAttrs describes err for an error record.
func errorAttrs(err error, maxLinks int) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 1 {
		kv = append(kv, "error_chain", chain)
	}
	if maxLinks > 0 {
		kv = append(kv, "error_links", chainLinks(err, maxLinks))
	}
	return kv
}

// errorChain lists the distinct messages down the Unwrap chain, then the
// members of a top-level errors.Join.
func errorChain(err error) []string {
	var out []string
	add := func(msg string) {
		if len(out) == 0 || out[len(out)-1] != msg {
			out = append(out, msg)
		}
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		add(e.Error())
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			add(e.Error())
		}
	}
	return out
}

// chainLinks gives one entry per wrap, with the position the wrap happened
// at when xerrors recorded one. The outermost error is always included.
func chainLinks(err error, max int) []map[string]any {
	var links []map[string]any
	for depth, e := 0, err; e != nil && depth < max; depth, e = depth+1, errors.Unwrap(e) {
		fr, ok := positionOf(e)
		if !ok && depth > 0 {
			continue
		}
		link := map[string]any{"msg": e.Error()}
		if ok {
			link["func"], link["file"], link["line"] = fr.Function, fr.File, fr.Line
		}
		links = append(links, link)
	}
	return links
}

func positionOf(e error) (runtime.Frame, bool) {
	switch v := e.(type) {
	case hasPC:
		return frameAt(v.PC())
	case hasStack:
		return callSite(v.StackPCs())
	}
	return runtime.Frame{}, false
}

// classifyTypes returns the first type in the chain that is not a plain
// wrapper, and the type at the bottom of the chain.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	bottom := err
	for e := err; e != nil; e = errors.Unwrap(e) {
		bottom = e
		if surface == "" && !isWrapper(e) {
			surface = fmt.Sprintf("%T", e)
		}
	}
	return cmp.Or(surface, fmt.Sprintf("%T", err)), fmt.Sprintf("%T", bottom)
}

func isWrapper(e error) bool {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	return strings.HasSuffix(pkg, "/internal/xerrors") || (pkg == "fmt" && t.Name() == "wrapError")
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	return pcs[:runtime.Callers(skip, pcs)]
}

// plumbing reports logger and handler methods, and slog itself.
func plumbing(fn string) bool {
	return strings.HasPrefix(fn, "log/slog.") || strings.Contains(fn, "/internal/log.(")
}

// formatFrames renders func and file:line pairs, skipping leading logging
// frames and stopping at the runtime.
func formatFrames(pcs []uintptr) string {
	var lines []string
	frames := runtime.CallersFrames(pcs)
	for range pcs {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if len(lines) > 0 || !plumbing(fr.Function) {
			lines = append(lines, fr.Function, "\t"+fr.File+":"+strconv.Itoa(fr.Line))
		}
		if !more {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func frameAt(pc uintptr) (runtime.Frame, bool) {
	if pc == 0 {
		return runtime.Frame{}, false
	}
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr, true
}

// callSite is the first frame outside logging, xerrors and the runtime.
func callSite(pcs []uintptr) (runtime.Frame, bool) {
	frames := runtime.CallersFrames(pcs)
	for range pcs {
		fr, more := frames.Next()
		own := plumbing(fr.Function) || strings.HasPrefix(fr.Function, "runtime.") ||
			strings.Contains(fr.Function, "/internal/xerrors.")
		if !own && fr.Function != "" {
			return fr, true
		}
		if !more {
			break
		}
	}
	return runtime.Frame{}, false
}
