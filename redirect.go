package gatekeeper

import (
	"net/url"
	"strings"
)

// SafeReturnPath validates a login return path against the site origin
// so the login flow can never be used as an open redirect. Same-origin
// absolute URLs are reduced to their path and query; relative paths are
// accepted as-is; anything cross-origin or malformed is discarded in
// favor of def.
func SafeReturnPath(raw, origin, def string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}

	// Protocol-relative URLs ("//evil.example/x") parse as relative
	// paths but navigate cross-origin.
	if strings.HasPrefix(raw, "//") {
		return def
	}

	target, err := url.Parse(raw)
	if err != nil {
		return def
	}

	if target.IsAbs() || target.Host != "" {
		site, err := url.Parse(origin)
		if err != nil || site.Host == "" {
			return def
		}
		if !strings.EqualFold(target.Host, site.Host) {
			return def
		}
		if target.Scheme != "" && site.Scheme != "" && !strings.EqualFold(target.Scheme, site.Scheme) {
			return def
		}
	}

	path := target.EscapedPath()
	if !strings.HasPrefix(path, "/") {
		return def
	}

	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	return path
}

// BuildLoginRedirect composes the login navigation target, carrying the
// validated return path so a successful sign-in can resume where the
// viewer left off.
func BuildLoginRedirect(loginPath, returnPath string) string {
	if returnPath == "" || returnPath == loginPath {
		return loginPath
	}

	values := url.Values{}
	values.Set("return_to", returnPath)

	separator := "?"
	if strings.Contains(loginPath, "?") {
		separator = "&"
	}

	return loginPath + separator + values.Encode()
}
