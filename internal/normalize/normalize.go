// Package normalize maps an arbitrary input URL string to the canonical
// (name, protocol) pair the rest of the crawler keys everything on.
package normalize

import "strings"

const (
	// HTTPS is the canonical upper-case scheme literal for https.
	HTTPS = "HTTPS://"
	// HTTP is the canonical upper-case scheme literal for http, also the
	// default when no scheme prefix is present.
	HTTP = "HTTP://"

	wwwPrefix = "WWW."
)

// Normalize upper-cases input, strips a leading HTTPS:// or HTTP:// (HTTP://
// is assumed if neither prefix is present), strips one leading WWW. from the
// remainder, and returns (name, protocol). A WWW. occurring later in the
// host is left untouched.
func Normalize(input string) (name string, protocol string) {
	upper := strings.ToUpper(strings.TrimSpace(input))

	switch {
	case strings.HasPrefix(upper, HTTPS):
		protocol = HTTPS
		upper = upper[len(HTTPS):]
	case strings.HasPrefix(upper, HTTP):
		protocol = HTTP
		upper = upper[len(HTTP):]
	default:
		protocol = HTTP
	}

	upper = strings.TrimPrefix(upper, wwwPrefix)

	return upper, protocol
}
