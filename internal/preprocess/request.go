package preprocess

import (
	"strings"
	"unicode/utf8"

	"github.com/linkshift/redirector/internal/domain"
)

// URLParts is a URL split without validation. Request URLs seen by the
// resolver are arbitrary visitor input, so no part is ever rejected.
type URLParts struct {
	Scheme   string
	Host     string
	Path     string
	Query    string
	Fragment string
}

// SplitURL splits raw into its parts. When hostFirst is set a leading
// segment without scheme is taken as the host.
func SplitURL(raw string, hostFirst bool) URLParts {
	var parts URLParts

	rest := raw
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		parts.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		parts.Query = rest[i+1:]
		rest = rest[:i]
	}

	if i := strings.Index(rest, "://"); i > 0 && !strings.Contains(rest[:i], "/") {
		parts.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+3:]
		hostFirst = true
	}

	if hostFirst {
		host, path, found := strings.Cut(rest, "/")
		parts.Host = strings.ToLower(host)
		if found {
			parts.Path = "/" + path
		}
		return parts
	}

	parts.Path = rest
	return parts
}

// Request is an incoming URL normalized the same way rule matchers are
type Request struct {
	Raw    string
	Scheme string
	Host   string
	// Path with slashes collapsed and original case preserved
	Path string
	// Path after case folding and the trailing slash policy
	NormalizedPath  string
	RawQuery        string
	QueryParams     map[string][]string
	NormalizedQuery string
	Fragment        string
}

// NormalizeRequest splits and normalizes a request URL under cfg
func NormalizeRequest(raw string, cfg domain.MatchingConfig) Request {
	raw = strings.TrimSpace(raw)
	parts := SplitURL(raw, false)
	path := CollapseSlashes(parts.Path)
	params := NormalizeQuery(parts.Query, cfg)
	return Request{
		Raw:             raw,
		Scheme:          parts.Scheme,
		Host:            parts.Host,
		Path:            path,
		NormalizedPath:  NormalizePath(path, cfg),
		RawQuery:        parts.Query,
		QueryParams:     params,
		NormalizedQuery: EncodeQuery(params),
		Fragment:        parts.Fragment,
	}
}

// IsRoot reports whether the request addresses the site root
func (r *Request) IsRoot() bool {
	return r.NormalizedPath == "/" || r.NormalizedPath == ""
}

// Remainder returns the original-case path after the first n runes of the
// normalized path.
func (r *Request) Remainder(n int) string {
	p := r.Path
	for i := 0; i < n && p != ""; i++ {
		_, size := utf8.DecodeRuneInString(p)
		p = p[size:]
	}
	return p
}
