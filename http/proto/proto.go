// Package proto enumerates the HTTP protocol versions this engine accepts. Version must be
// exactly "HTTP/1.0" or "HTTP/1.1"; anything else is rejected at parse time.
package proto

type Proto uint8

const (
	Unknown Proto = iota
	HTTP10
	HTTP11
)

// String returns the wire token for p, or "" for Unknown.
func (p Proto) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return ""
	}
}

const tokenLength = len("HTTP/1.1")

// Parse maps a raw version token, as it appears on the wire, to a Proto. Returns Unknown for
// anything else, including HTTP/2's "HTTP/2" token — this engine speaks HTTP/1.x only.
func Parse(raw []byte) Proto {
	if len(raw) != tokenLength {
		return Unknown
	}

	if string(raw[:len("HTTP/1.")]) != "HTTP/1." {
		return Unknown
	}

	switch raw[tokenLength-1] {
	case '0':
		return HTTP10
	case '1':
		return HTTP11
	default:
		return Unknown
	}
}
