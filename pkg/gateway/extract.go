package gateway

// ExtractJSONObject returns the first balanced {...} span in s: the one
// whose opening brace comes earliest. Braces inside JSON string literals
// (including escaped quotes) are ignored; quotes outside any brace are
// prose. It reports false if no opening brace is ever closed.
//
// s is scanned once, so the cost is linear in len(s).
func ExtractJSONObject(s string) (string, bool) {
	var (
		open     []int // offsets of unclosed '{', innermost last
		inString bool
		escaped  bool

		bestStart = -1
		bestEnd   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(open) > 0 {
				inString = true
			}
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			p := open[len(open)-1]
			open = open[:len(open)-1]
			if len(open) == 0 {
				// p is the outermost brace still open, so nothing earlier
				// can close any more.
				return s[p : i+1], true
			}
			if bestStart < 0 || p < bestStart {
				bestStart, bestEnd = p, i
			}
		}
	}
	if bestStart < 0 {
		return "", false
	}
	return s[bestStart : bestEnd+1], true
}
