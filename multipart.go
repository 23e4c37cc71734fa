package forge

import (
	"bytes"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MultipartPart is one named/file part of a multipart/form-data body.
// It is a file part iff Filename is non-empty.
type MultipartPart struct {
	Headers     *Headers
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// IsFile reports whether p is a file part.
func (p *MultipartPart) IsFile() bool {
	return p.Filename != ""
}

// BoundaryFromContentType extracts the boundary token from a
// "multipart/form-data; boundary=..." Content-Type value.
func BoundaryFromContentType(contentType string) (string, bool) {
	const key = "boundary="
	i := strings.Index(contentType, key)
	if i < 0 {
		return "", false
	}
	b := contentType[i+len(key):]
	if j := strings.IndexByte(b, ';'); j >= 0 {
		b = b[:j]
	}
	b = strings.Trim(strings.TrimSpace(b), `"`)
	if b == "" {
		return "", false
	}
	return b, true
}

// ParseMultipart splits body by boundary into an ordered sequence of
// parts per RFC 2046's multipart grammar. The boundary is matched as a
// raw byte literal — it is never itself decoded — and data is never
// interpreted as text (binary-safe).
func ParseMultipart(body []byte, boundary string) ([]*MultipartPart, error) {
	if boundary == "" {
		return nil, ErrMissingBoundary
	}

	delim := append([]byte("--"), boundary...)

	// Find the first boundary marker; everything before it is prologue
	// and is discarded.
	start := bytes.Index(body, delim)
	if start < 0 {
		return nil, ErrMissingBoundary
	}

	var parts []*MultipartPart
	pos := start

	for {
		pos += len(delim)
		if pos+1 < len(body) && body[pos] == '-' && body[pos+1] == '-' {
			// Terminal marker "--<boundary>--": parsing ends here
			// regardless of any trailing epilogue bytes.
			break
		}

		// Expect CRLF after the boundary line (ignore any transport
		// padding before it).
		if eol := indexCRLF(body, pos); eol >= 0 {
			pos = eol + 2
		} else {
			return nil, ErrMalformedPart
		}

		next := bytes.Index(body[pos:], delim)
		if next < 0 {
			// No closing boundary: treat rest as malformed rather than
			// silently dropping data.
			return nil, ErrMalformedPart
		}
		segment := body[pos : pos+next]
		pos += next

		part, err := parseOnePart(segment)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)

		// pos now points at the start of the next "--<boundary>"
		// marker; the top of the loop decides whether it's terminal.
	}

	if len(parts) == 0 {
		return nil, ErrMalformedPart
	}

	return parts, nil
}

// parseOnePart splits one part's raw bytes (everything between two
// boundary lines, including the CRLF that precedes the next boundary,
// which it strips first) into headers and data.
func parseOnePart(segment []byte) (*MultipartPart, error) {
	// Trailing CRLF immediately preceding the next boundary belongs to
	// the framing, not the data.
	segment = bytes.TrimSuffix(segment, []byte("\r\n"))

	headerEnd := bytes.Index(segment, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, ErrMalformedPart
	}

	headerBlock := segment[:headerEnd]
	data := segment[headerEnd+4:]

	headers := NewHeaders()
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, ErrMalformedPart
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		headers.Set(name, value)
	}

	disposition, _ := headers.Get("content-disposition")
	name, filename := parseContentDisposition(disposition)
	if filename != "" {
		// Normalize client-supplied filenames to NFC so later
		// byte-wise comparisons (e.g. against a sanitized upload
		// name) aren't fooled by combining-character variants.
		filename = norm.NFC.String(filename)
	}

	contentType, _ := headers.Get("content-type")

	return &MultipartPart{
		Headers:     headers,
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// parseContentDisposition pulls name="…" and filename="…" out of a
// Content-Disposition value. "form-data" is the implied disposition;
// quotes are stripped.
func parseContentDisposition(value string) (name, filename string) {
	for _, field := range strings.Split(value, ";") {
		field = strings.TrimSpace(field)
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(field[:eq])
		val := strings.Trim(strings.TrimSpace(field[eq+1:]), `"`)
		switch strings.ToLower(key) {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}
	return name, filename
}

// SerializeMultipart assembles parts into a multipart/form-data body
// with the given boundary — the inverse of ParseMultipart, used by
// tests to exercise the round-trip and by any client-side tooling
// built on this package.
func SerializeMultipart(parts []*MultipartPart, boundary string) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.WriteString("--")
		buf.WriteString(boundary)
		buf.WriteString("\r\n")

		disposition := `form-data; name="` + p.Name + `"`
		if p.Filename != "" {
			disposition += `; filename="` + p.Filename + `"`
		}
		buf.WriteString("Content-Disposition: ")
		buf.WriteString(disposition)
		buf.WriteString("\r\n")

		if p.ContentType != "" {
			buf.WriteString("Content-Type: ")
			buf.WriteString(p.ContentType)
			buf.WriteString("\r\n")
		}

		buf.WriteString("\r\n")
		buf.Write(p.Data)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--")
	buf.WriteString(boundary)
	buf.WriteString("--\r\n")
	return buf.Bytes()
}
