package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var canonicalIDPattern = regexp.MustCompile(`^(.+)_(\d+)$`)

// ResolveID derives the canonical identifier of a category or book from its
// source URL. The identifier is the second-to-last path segment, which on the
// catalog site has the shape <slug>_<digits>:
//
//	.../catalogue/a-light-in-the-attic_1000/index.html -> a-light-in-the-attic_1000
//
// When the segment does not have that shape it is returned unchanged and ok
// is false so the caller can warn about it.
func ResolveID(rawURL string) (id string, ok bool) {
	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}

	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return "", false
	}
	segment := segments[len(segments)-2]

	match := canonicalIDPattern.FindStringSubmatch(segment)
	if match == nil {
		return segment, false
	}
	return match[1] + "_" + match[2], true
}
