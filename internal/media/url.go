package media

import (
	"net/url"
	"strings"
)

// UnwrapURL returns the origin URL of an images.weserv.nl proxy link, or raw
// unchanged when it is not one. The proxied value is "//host/path" or
// "host/path" and always resolves to https.
func UnwrapURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "images.weserv.nl") {
		return raw
	}
	inner := u.Query().Get("url")
	if inner == "" {
		return raw
	}
	if strings.HasPrefix(inner, "http://") || strings.HasPrefix(inner, "https://") {
		return inner
	}
	return "https://" + strings.TrimLeft(inner, "/")
}
