package sqlite

import "strings"

// QuoteIdent applies SQLite double-quote identifier quoting, escaping
// embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each dot-separated segment of a possibly qualified table
// name ("main.events" -> "main"."events"). Empty segments are dropped.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}
