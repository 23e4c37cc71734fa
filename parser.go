package forge

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Parser size limits
const (
	DefaultReadBufferSize = 16 * 1024       // 16 KiB
	MaxRequestBytes       = 1 * 1024 * 1024 // 1 MiB hard max
	MaxHeaderLineSize     = 8 * 1024        // 8 KiB
	MaxHeaderCount        = 100
)

// ParseRequest turns one buffered read into a *Request. It never
// panics; any malformed input yields one of the sentinel errors in
// errors.go and the caller must answer with 400 Bad Request.
func ParseRequest(buf []byte, remoteAddr string) (*Request, error) {
	if len(buf) > MaxRequestBytes {
		return nil, ErrRequestTooLarge
	}

	lineEnd := indexCRLF(buf, 0)
	if lineEnd < 0 {
		return nil, ErrMalformedRequestLine
	}
	requestLine := buf[:lineEnd]

	tokens := strings.SplitN(string(requestLine), " ", 3)
	if len(tokens) != 3 {
		return nil, ErrMalformedRequestLine
	}
	methodTok, rawURI, version := tokens[0], tokens[1], tokens[2]

	method := ParseMethod(methodTok)
	if method == Unknown {
		return nil, ErrUnsupportedMethod
	}

	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, ErrUnsupportedVersion
	}

	rawPath, rawQuery := rawURI, ""
	if i := strings.IndexByte(rawURI, '?'); i >= 0 {
		rawPath, rawQuery = rawURI[:i], rawURI[i+1:]
	}

	path, err := percentDecodePath(rawPath)
	if err != nil {
		return nil, err
	}
	if path == "" || path[0] != '/' {
		return nil, ErrMalformedRequestLine
	}

	query, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	headers := NewHeaders()
	pos := lineEnd + 2
	for {
		nextEnd := indexCRLF(buf, pos)
		if nextEnd < 0 {
			return nil, ErrMalformedRequestLine
		}
		if nextEnd == pos {
			// Blank line: end of headers.
			pos = nextEnd + 2
			break
		}

		line := buf[pos:nextEnd]
		if len(line) > MaxHeaderLineSize {
			return nil, ErrHeaderTooLarge
		}
		if headers.Len() >= MaxHeaderCount {
			return nil, ErrTooManyHeaders
		}

		colon := indexByte(line, ':')
		if colon < 0 {
			return nil, ErrMalformedRequestLine
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, ErrMalformedRequestLine
		}
		headers.Set(name, value)

		pos = nextEnd + 2
	}

	var body []byte
	if pos < len(buf) {
		body = buf[pos:]
	}

	return &Request{
		Method:      method,
		Path:        path,
		Version:     version,
		Headers:     headers,
		QueryParams: query,
		Body:        body,
		PathParams:  map[string]string{},
		RemoteAddr:  remoteAddr,
	}, nil
}

// indexCRLF returns the index of the first "\r\n" in buf at or after
// from, or -1 if none exists.
func indexCRLF(buf []byte, from int) int {
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// percentDecodePath decodes a path component, rejecting an encoded NUL
// byte ("%00").
func percentDecodePath(s string) (string, error) {
	return percentDecode(s, false)
}

// parseQuery parses "name=value&…", percent-decoding both sides with
// "+" mapped to space, last-value-wins on duplicate keys.
func parseQuery(raw string) (map[string]string, error) {
	out := map[string]string{}
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		var name, value string
		if i := strings.IndexByte(pair, '='); i >= 0 {
			name, value = pair[:i], pair[i+1:]
		} else {
			name, value = pair, ""
		}
		dn, err := percentDecode(name, true)
		if err != nil {
			return nil, err
		}
		dv, err := percentDecode(value, true)
		if err != nil {
			return nil, err
		}
		out[dn] = dv
	}
	return out, nil
}

// percentDecode decodes %XX escapes. When plusAsSpace is true (query
// strings, not paths), "+" decodes to a literal space. An encoded NUL
// ("%00") is always rejected.
func percentDecode(s string, plusAsSpace bool) (string, error) {
	hasPercent := strings.IndexByte(s, '%') >= 0
	hasPlus := plusAsSpace && strings.IndexByte(s, '+') >= 0
	if !hasPercent && !hasPlus {
		return s, nil
	}

	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '%':
			if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
				return "", ErrBadPercentEncoding
			}
			decoded := unhexDigit(s[i+1])<<4 | unhexDigit(s[i+2])
			if decoded == 0x00 {
				return "", ErrBadPercentEncoding
			}
			b = append(b, decoded)
			i += 2
		case plusAsSpace && s[i] == '+':
			b = append(b, ' ')
		default:
			b = append(b, s[i])
		}
	}
	return string(b), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhexDigit(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
