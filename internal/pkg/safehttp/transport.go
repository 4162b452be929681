// Package safehttp provides HTTP transports for fetching user-supplied URLs.
package safehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrBlockedAddress is returned when a dial resolves to a non-public address.
var ErrBlockedAddress = errors.New("access to non-public address denied")

// Blocked reports whether ip is loopback, private, link-local or unspecified.
func Blocked(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// NewTransport returns a transport that refuses to talk to addresses for
// which Blocked is true. The remote address is checked after the dial, so
// DNS rebinding cannot slip a private address past a pre-resolution check.
func NewTransport(dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: dialTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}
			if Blocked(ip) {
				conn.Close()
				return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
			}
			return conn, nil
		},
	}
}

// SafeTransport is the shared transport used by image fetchers.
var SafeTransport = NewTransport(5 * time.Second)
