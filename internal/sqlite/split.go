package sqlite

import "strings"

// SplitStatements splits text into its ';'-terminated statements. Semicolons
// inside string literals, quoted identifiers, comments and CREATE TRIGGER
// bodies do not end a statement. Pieces holding only whitespace and
// comments are dropped. The returned statements keep their own comments.
func SplitStatements(text string) []string {
	var (
		out     []string
		start   int
		content bool
		words   []string // leading keywords of the current statement
		trigger bool
		depth   int // BEGIN/CASE nesting inside a trigger
	)
	emit := func(end int) {
		if content {
			out = append(out, strings.TrimSpace(text[start:end]))
		}
		start = end + 1
		content = false
		words = words[:0]
		trigger = false
		depth = 0
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
				i += j
			} else {
				i = len(text)
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			if j := strings.Index(text[i+2:], "*/"); j >= 0 {
				i += j + 3
			} else {
				i = len(text)
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			content = true
			i = skipQuoted(text, i)
		case c == ';':
			if trigger && depth > 0 {
				continue
			}
			emit(i)
		case isWordByte(c):
			j := i
			for j < len(text) && isWordByte(text[j]) {
				j++
			}
			content = true
			w := strings.ToUpper(text[i:j])
			if len(words) < 3 {
				words = append(words, w)
			}
			switch {
			case !trigger && createsTrigger(words):
				trigger = true
			case trigger && w == "BEGIN":
				depth++
			case trigger && depth > 0 && w == "CASE":
				depth++
			case trigger && depth > 0 && w == "END":
				depth--
			}
			i = j - 1
		case c > ' ':
			content = true
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return out
}

// skipQuoted returns the index of the delimiter closing the quoted token that
// opens at text[i], or the last index when it is unterminated.
func skipQuoted(text string, i int) int {
	closer := text[i]
	if closer == '[' {
		closer = ']'
	}
	for j := i + 1; j < len(text); j++ {
		if text[j] != closer {
			continue
		}
		// A doubled quote is an escaped quote.
		if closer != ']' && j+1 < len(text) && text[j+1] == closer {
			j++
			continue
		}
		return j
	}
	return len(text) - 1
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func createsTrigger(words []string) bool {
	if len(words) < 2 || words[0] != "CREATE" {
		return false
	}
	if words[1] == "TRIGGER" {
		return true
	}
	return len(words) == 3 && (words[1] == "TEMP" || words[1] == "TEMPORARY") && words[2] == "TRIGGER"
}
