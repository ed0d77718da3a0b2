package lead

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL normalizes a job locator into its deduplication key: scheme
// and host are lowercased, the fragment is dropped, and a trailing slash on
// the path is removed. Two submissions of the same posting must always
// canonicalize identically or the store-level uniqueness guarantee is
// meaningless.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), nil
}
