package lan

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/iamasit07/snakesync/internal/domain"
)

// Listen binds a TCP listener; pass port 0 for an ephemeral port.
func Listen(ctx context.Context, host string, port int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind room socket: %w", err)
	}
	return ln, nil
}

// Dial connects to a room; ctx bounds the wait.
func Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	return conn, nil
}

// LocalIPv4 returns the first non-loopback IPv4 address of an up interface.
func LocalIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("cannot list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipnet.IP.To4(); ip != nil && !ip.IsLoopback() {
				return ip.String(), nil
			}
		}
	}
	return "", domain.ErrNoLocalAddress
}

// UsableHostAddress rejects blank and loopback addresses for hosting.
func UsableHostAddress(addr string) bool {
	if addr == "" {
		return false
	}
	ip := net.ParseIP(addr)
	return ip == nil || !ip.IsLoopback()
}
