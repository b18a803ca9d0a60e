package conn

import (
	"net"
	"strings"

	"github.com/loomhttp/loom/http/headers"
)

// OverlayXHeaders implements the reverse-proxy trust overlay: remote_ip is taken from
// X-Real-Ip or X-Forwarded-For when it parses as a dotted IPv4 address, otherwise the socket
// peer address is kept; protocol is taken from X-Scheme or X-Forwarded-Proto only when the
// value is exactly "http" or "https", otherwise it defaults from whether the stream is TLS.
// Called only when the connection was constructed with xheaders enabled; the caller is
// expected to pass peerIP/defaultProtocol unchanged when it is not.
func OverlayXHeaders(h *headers.Set, peerIP string, isTLS bool) (remoteIP, protocol string) {
	remoteIP = peerIP
	if candidate := firstNonEmpty(h.Value("X-Real-Ip"), h.Value("X-Forwarded-For")); candidate != "" {
		if looksLikeIPv4(candidate) {
			if comma := strings.IndexByte(candidate, ','); comma != -1 {
				candidate = candidate[:comma]
			}
			remoteIP = strings.TrimSpace(candidate)
		}
	}

	protocol = DefaultProtocol(isTLS)
	if candidate := firstNonEmpty(h.Value("X-Scheme"), h.Value("X-Forwarded-Proto")); candidate == "http" || candidate == "https" {
		protocol = candidate
	}

	return remoteIP, protocol
}

func DefaultProtocol(isTLS bool) string {
	if isTLS {
		return "https"
	}

	return "http"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// looksLikeIPv4 reports whether candidate parses as a dotted-decimal IPv4 address, rejecting
// IPv6 literals and anything else a forwarded-for chain might contain. A forwarded-for header
// may carry a comma-separated chain; only the first hop is considered.
func looksLikeIPv4(candidate string) bool {
	if comma := strings.IndexByte(candidate, ','); comma != -1 {
		candidate = candidate[:comma]
	}

	ip := net.ParseIP(strings.TrimSpace(candidate))
	return ip != nil && ip.To4() != nil
}
