package extract

import "strings"

// stripRTF converts RTF to plain text by dropping control words and groups.
// It handles the subset real chat uploads use: \par line breaks, hex escapes,
// and the font/color/stylesheet header groups, which are skipped entirely.
func stripRTF(src string) string {
	var sb strings.Builder
	skipGroupDepth := 0
	depth := 0
	i := 0

	for i < len(src) {
		c := src[i]
		switch c {
		case '{':
			depth++
			i++
		case '}':
			if skipGroupDepth > 0 && depth == skipGroupDepth {
				skipGroupDepth = 0
			}
			depth--
			i++
		case '\\':
			word, arg, next := readControl(src, i+1)
			i = next
			if skipGroupDepth > 0 {
				continue
			}
			switch word {
			case "par", "line":
				sb.WriteByte('\n')
			case "tab":
				sb.WriteByte('\t')
			case "'":
				// Hex escape: two hex digits follow.
				if i+1 < len(src) {
					i += 2
				}
			case "fonttbl", "colortbl", "stylesheet", "info", "pict":
				skipGroupDepth = depth
			case "":
				// Escaped literal brace or backslash.
				if arg != "" {
					sb.WriteString(arg)
				}
			}
		case '\r', '\n':
			i++
		default:
			if skipGroupDepth == 0 {
				sb.WriteByte(c)
			}
			i++
		}
	}
	return strings.TrimSpace(sb.String())
}

// readControl consumes a control word or symbol starting after a backslash.
// It returns the word, any escaped literal, and the index after the control.
func readControl(src string, start int) (word, literal string, next int) {
	if start >= len(src) {
		return "", "", start
	}

	c := src[start]
	if c == '\\' || c == '{' || c == '}' {
		return "", string(c), start + 1
	}
	if c == '\'' {
		return "'", "", start + 1
	}
	if !isAlpha(c) {
		return "", "", start + 1
	}

	end := start
	for end < len(src) && isAlpha(src[end]) {
		end++
	}
	word = src[start:end]

	// Optional numeric parameter.
	if end < len(src) && (src[end] == '-' || isDigit(src[end])) {
		end++
		for end < len(src) && isDigit(src[end]) {
			end++
		}
	}
	// A single space delimiter belongs to the control word.
	if end < len(src) && src[end] == ' ' {
		end++
	}
	return word, "", end
}

func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
