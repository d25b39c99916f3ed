package finder

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// EncodeEntities rewrites every valid non-ASCII character of s as a decimal
// numeric character reference ("é" becomes "&#233;"). ASCII bytes and invalid
// UTF-8 bytes are copied through. A string with no byte >= 0x80 is returned
// unchanged.
func EncodeEntities(s string) string {
	first := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			first = i
			break
		}
	}
	if first < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 8)
	sb.WriteString(s[:first])

	for i := first; i < len(s); {
		if s[i] < utf8.RuneSelf {
			sb.WriteByte(s[i])
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteByte(s[i])
			i++
			continue
		}
		sb.WriteString("&#")
		sb.WriteString(strconv.Itoa(int(r)))
		sb.WriteByte(';')
		i += size
	}
	return sb.String()
}
