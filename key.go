package texload

import (
	"strings"

	"golang.org/x/text/cases"
)

// keyFolder performs Unicode case folding for resource keys. Resource paths
// originate in user-authored config files written against case-insensitive
// filesystems, so simple ASCII lowering is not enough.
var keyFolder = cases.Fold()

// CanonicalKey normalizes a resource path into its cache identity:
// backslashes become forward slashes, redundant "./" segments and duplicate
// separators collapse, and the result is case-folded. Two paths that name
// the same file on a case-insensitive filesystem canonicalize equally.
func CanonicalKey(path string) string {
	s := strings.ReplaceAll(path, "\\", "/")

	// Collapse "//" and "/./" without allocating for the common clean case.
	if strings.Contains(s, "//") || strings.Contains(s, "/./") || strings.HasPrefix(s, "./") {
		rooted := strings.HasPrefix(s, "/")
		parts := strings.Split(s, "/")
		out := parts[:0]
		for _, p := range parts {
			if p == "" || p == "." {
				continue
			}
			out = append(out, p)
		}
		s = strings.Join(out, "/")
		// A rooted path keeps its root: "/a//b" and "/a/b" are one file,
		// "a/b" is another.
		if rooted {
			s = "/" + s
		}
	}

	return keyFolder.String(s)
}
