package router

import (
	"errors"
	"net/url"
	"strings"
)

// URL resolution errors.
var (
	ErrNotSameOrigin        = errors.New("router: url is not same-origin")
	ErrInvalidURL           = errors.New("router: invalid url")
	ErrBackslashInPath      = errors.New("router: path contains backslash")
	ErrNullByteInPath       = errors.New("router: path contains null byte")
	ErrInvalidPercentEscape = errors.New("router: invalid percent escape sequence")
)

// Resolve resolves href against base the way an anchor does, strips the
// fragment and normalizes the path. Only same-origin targets resolve.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if strings.Contains(href, "\\") {
		return nil, ErrBackslashInPath
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, ErrInvalidURL
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
		if !sameOrigin(base, u) {
			return nil, ErrNotSameOrigin
		}
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrNotSameOrigin
	}
	if err := checkPath(u.EscapedPath()); err != nil {
		return nil, err
	}
	out := *u
	out.Fragment, out.RawFragment = "", ""
	if out.Path == "" {
		out.Path = "/"
	}
	return &out, nil
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// checkPath rejects paths that cannot name a page.
func checkPath(p string) error {
	if strings.Contains(p, "\x00") || strings.Contains(strings.ToUpper(p), "%00") {
		return ErrNullByteInPath
	}
	for i := 0; i < len(p); i++ {
		if p[i] != '%' {
			continue
		}
		if i+2 >= len(p) || !isHexDigit(p[i+1]) || !isHexDigit(p[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// cacheKey identifies a page regardless of fragment.
func cacheKey(u *url.URL) string {
	out := *u
	out.Fragment, out.RawFragment = "", ""
	return out.String()
}
