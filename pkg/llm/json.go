package llm

import "strings"

// ExtractJSON isolates the first balanced JSON object or array embedded in a
// free-form model response. Returns "" when no balanced payload exists.
// String literals are honored so braces inside values do not break balancing.
func ExtractJSON(response string) string {
	objStart := strings.IndexByte(response, '{')
	arrStart := strings.IndexByte(response, '[')

	start := objStart
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
	}
	if start == -1 {
		return ""
	}

	open := response[start]
	var closing byte = '}'
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// Skip structural chars inside strings
		case c == open:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
