package insight

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Decode turns the escape sequences the insight service leaves in its text
// into the characters they stand for. Handled: \n \r \t \" \\ \/ and \uXXXX,
// including UTF-16 surrogate pairs. Anything else is kept verbatim.
func Decode(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 >= len(s) {
			b.WriteByte(ch)
			continue
		}

		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"', '\\', '/':
			b.WriteByte(s[i+1])
			i++
		case 'u':
			r, width, ok := decodeUnicode(s[i:])
			if !ok {
				b.WriteByte(ch)
				continue
			}
			b.WriteRune(r)
			i += width - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// decodeUnicode reads a \uXXXX escape at the start of s, combining a following
// low surrogate when the first unit is a high surrogate. It returns the rune
// and the number of bytes consumed.
func decodeUnicode(s string) (rune, int, bool) {
	first, ok := hexUnit(s)
	if !ok {
		return 0, 0, false
	}
	if !utf16.IsSurrogate(first) {
		return first, 6, true
	}
	if second, ok := hexUnit(s[6:]); ok {
		if r := utf16.DecodeRune(first, second); r != unicode.ReplacementChar {
			return r, 12, true
		}
	}
	// Unpaired surrogates are not characters; keep the escape text.
	return 0, 0, false
}

func hexUnit(s string) (rune, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 16)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
