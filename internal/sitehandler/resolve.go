package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/keithlinneman/draftsite/internal/pathutil"
)

// target is where a URL path lands inside a snapshot. Exactly one of file
// and redirect is set.
type target struct {
	file     string
	redirect string
}

// lookup maps a URL path onto fsys:
//
//	/             -> index.html
//	/dir/         -> dir/index.html
//	/file.ext     -> file.ext
//	/dir          -> redirect to /dir/ when dir/index.html exists
//
// Paths with NUL bytes, backslashes or dot segments never match.
func lookup(fsys fs.FS, urlPath string) (target, bool) {
	p := "/" + strings.TrimPrefix(urlPath, "/")
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") || pathutil.HasDotSegments(p) {
		return target{}, false
	}

	dir := strings.HasSuffix(p, "/")
	rel := strings.TrimPrefix(path.Clean(p), "/")

	var name string
	switch {
	case rel == "":
		name = "index.html"
	case dir:
		name = rel + "/index.html"
	case path.Ext(rel) != "":
		name = rel
	default:
		if isFile(fsys, rel+"/index.html") {
			return target{redirect: "/" + rel + "/"}, true
		}
		return target{}, false
	}
	if !isFile(fsys, name) {
		return target{}, false
	}
	return target{file: name}, true
}

func isFile(fsys fs.FS, name string) bool {
	if fsys == nil || !fs.ValidPath(name) || name == "." {
		return false
	}
	fi, err := fs.Stat(fsys, name)
	return err == nil && fi.Mode().IsRegular()
}
