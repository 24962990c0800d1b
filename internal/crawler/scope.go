package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// canonicalFlags never strip the fragment: IsValid relies on seeing '#'.
const canonicalFlags = purell.FlagLowercaseScheme |
	purell.FlagLowercaseHost |
	purell.FlagUppercaseEscapes |
	purell.FlagDecodeUnnecessaryEscapes |
	purell.FlagEncodeNecessaryEscapes |
	purell.FlagRemoveDefaultPort |
	purell.FlagRemoveEmptyQuerySeparator |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes

var nonPagePrefixes = []string{"mailto:", "tel:", "javascript:"}

// Scope is the crawl root (scheme, host and optional path prefix) together
// with the rules that turn discovered hrefs into in-scope URLs.
type Scope struct {
	root   string
	parsed *url.URL
}

// NewScope parses and canonicalizes the seed URL. Surrounding whitespace and
// trailing slashes are dropped so "http://example.com/" and
// "http://example.com" describe the same root.
func NewScope(rawRoot string) (Scope, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawRoot), "/")
	if trimmed == "" {
		return Scope{}, ConfigError("seed url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return Scope{}, ConfigError("parse seed url %q: %v", rawRoot, err)
	}
	if !isHTTPScheme(u.Scheme) {
		return Scope{}, ConfigError("seed url %q must use http or https", rawRoot)
	}
	if u.Host == "" {
		return Scope{}, ConfigError("seed url %q has no host", rawRoot)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Scope{}, ConfigError("seed url %q must not carry a query or fragment", rawRoot)
	}

	canonical := strings.TrimRight(purell.NormalizeURL(u, canonicalFlags), "/")
	parsed, err := url.Parse(canonical)
	if err != nil {
		return Scope{}, ConfigError("parse seed url %q: %v", rawRoot, err)
	}
	return Scope{root: canonical, parsed: parsed}, nil
}

// Root returns the canonical root URL without a trailing slash.
func (s Scope) Root() string {
	return s.root
}


// Normalize turns a raw href found on a page into an absolute URL. The second
// result is false when the href is empty or cannot be parsed. Non-HTTP hrefs
// such as mailto: links come back unchanged; IsValid rejects them later.
func (s Scope) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || s.parsed == nil {
		return "", false
	}
	if strings.HasPrefix(raw, s.root) {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		return canonicalize(u), true
	}
	if hasNonPagePrefix(raw) {
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch {
	case isHTTPScheme(u.Scheme):
		return canonicalize(u), true
	case u.Scheme != "":
		return raw, true
	case u.Host != "":
		// protocol-relative: //host/path
		u.Scheme = s.parsed.Scheme
		return canonicalize(u), true
	}

	target := *s.parsed
	target.RawPath = ""
	target.RawQuery = u.RawQuery
	target.Fragment = u.Fragment
	target.RawFragment = ""
	if strings.HasPrefix(u.Path, "/") {
		target.Path = s.parsed.Path + u.Path
	} else {
		target.Path = s.parsed.Path + "/" + u.Path
	}
	return canonicalize(&target), true
}

// IsValid reports whether target may be enqueued: it must be non-empty, carry
// no fragment, not be a mailto:/tel:/javascript: link, and sit under the root.
func (s Scope) IsValid(target string) bool {
	if target == "" || s.parsed == nil {
		return false
	}
	if strings.Contains(target, "#") || hasNonPagePrefix(target) {
		return false
	}
	return s.Contains(target)
}

// Contains compares scheme, host and path segments against the root, so
// "http://example.com.evil.org" is not inside "http://example.com".
func (s Scope) Contains(target string) bool {
	if s.parsed == nil {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, s.parsed.Scheme) || !strings.EqualFold(u.Host, s.parsed.Host) {
		return false
	}
	return pathWithin(u.Path, s.parsed.Path)
}

// Normalize is Scope.Normalize for callers holding the root as a string.
func Normalize(raw, rootDomain string) (string, bool) {
	scope, err := NewScope(rootDomain)
	if err != nil {
		return "", false
	}
	return scope.Normalize(raw)
}

// IsValid is Scope.IsValid for callers holding the root as a string.
func IsValid(target, rootDomain string) bool {
	scope, err := NewScope(rootDomain)
	if err != nil {
		return false
	}
	return scope.IsValid(target)
}

// canonicalize rewrites u in place. A bare "/" path is folded into the host
// so "http://example.com/" and the root "http://example.com" are one URL.
func canonicalize(u *url.URL) string {
	normalized := purell.NormalizeURL(u, canonicalFlags)
	if u.Path != "/" {
		return normalized
	}
	u.Path = ""
	u.RawPath = ""
	return purell.NormalizeURL(u, canonicalFlags)
}

func isHTTPScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

func hasNonPagePrefix(raw string) bool {
	lower := strings.ToLower(raw)
	for _, prefix := range nonPagePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func pathWithin(path, rootPath string) bool {
	if rootPath == "" || path == rootPath {
		return true
	}
	return strings.HasPrefix(path, rootPath+"/")
}
