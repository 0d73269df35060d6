package httputil

import (
	"net"
	"net/http"
)

// RemoteIP returns the client IP without the ephemeral port, so attempt
// counting keys on the address rather than the connection.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
