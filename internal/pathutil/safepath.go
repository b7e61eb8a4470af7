// Package pathutil checks slash-separated paths taken from requests and
// bundle archives.
package pathutil

import "strings"

// HasDotSegments reports whether p has a "." or ".." segment. Dotfiles and
// "..." are ordinary names.
func HasDotSegments(p string) bool {
	for seg := range strings.SplitSeq(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
