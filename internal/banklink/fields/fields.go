// Package fields implements the shared inbound field normalization and the
// charset-aware encoding used when signing and serializing protocol
// messages. Every adapter assumes its field map went through Normalize (or
// FromForm) first.
package fields

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Normalize trims and stringifies every value of an arbitrary scalar map.
// Absent/falsy values become ""; numeric zero is preserved as "0".
func Normalize(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		if !v {
			return ""
		}
		return "true"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// FromForm normalizes a parsed form: first value wins, trimmed.
func FromForm(form url.Values) map[string]string {
	out := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			out[key] = ""
			continue
		}
		out[key] = strings.TrimSpace(values[0])
	}
	return out
}

// IsUTF8 reports whether the charset label means UTF-8 ("UTF-8", "utf_8", ...).
func IsUTF8(charset string) bool {
	c := strings.ToUpper(strings.TrimSpace(charset))
	return c == "UTF-8" || c == "UTF_8" || c == "UTF8"
}

func encodingFor(charset string) encoding.Encoding {
	switch strings.ToUpper(strings.TrimSpace(charset)) {
	case "ISO-8859-1", "LATIN1":
		return charmap.ISO8859_1
	case "ISO-8859-4":
		return charmap.ISO8859_4
	case "ISO-8859-13":
		return charmap.ISO8859_13
	case "ISO-8859-15":
		return charmap.ISO8859_15
	case "WINDOWS-1252":
		return charmap.Windows1252
	case "WINDOWS-1257":
		return charmap.Windows1257
	}
	return nil
}

// Encode converts s to the given charset's bytes. Unknown charsets and
// UTF-8 pass through; unmappable runes degrade to the encoder's
// substitution byte rather than failing the message.
func Encode(s, charset string) []byte {
	enc := encodingFor(charset)
	if enc == nil {
		return []byte(s)
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Replace unmappable runes one by one.
		var b strings.Builder
		encoder := enc.NewEncoder()
		for _, r := range s {
			chunk, err := encoder.Bytes([]byte(string(r)))
			if err != nil {
				b.WriteByte('?')
				continue
			}
			b.Write(chunk)
		}
		return []byte(b.String())
	}
	return encoded
}

// Decode converts charset bytes back to a UTF-8 string.
func Decode(b []byte, charset string) string {
	enc := encodingFor(charset)
	if enc == nil {
		return string(b)
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}

// ForceCharset round-trips s through the charset, so that stored response
// values match what actually went over the wire (runes the charset cannot
// carry are degraded the same way the serialized payload degrades them).
func ForceCharset(s, charset string) string {
	if IsUTF8(charset) {
		return s
	}
	return Decode(Encode(s, charset), charset)
}

// StringifyQuery URL-encodes the field map with values encoded in the
// message charset. Keys are emitted in sorted order for determinism.
func StringifyQuery(fields map[string]string, charset string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(escapeBytes(Encode(fields[key], charset)))
	}
	return b.String()
}

func escapeBytes(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if c == ' ' {
			b.WriteByte('+')
			continue
		}
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return b.String()
}

// AppendQuery attaches an encoded query string to a URL, respecting an
// existing query part.
func AppendQuery(rawURL, query string) string {
	if query == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
