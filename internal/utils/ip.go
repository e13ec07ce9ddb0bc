package utils

import (
	"net"
	"strings"
)

const LoopbackIP = "127.0.0.1"

// NormalizeIP folds every loopback form to 127.0.0.1 and IPv4-mapped IPv6
// addresses to plain IPv4. Unparseable input is returned trimmed.
func NormalizeIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	// Zone suffix, e.g. fe80::1%eth0
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return addr
	}
	if ip.IsLoopback() {
		return LoopbackIP
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
