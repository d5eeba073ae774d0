package imagegen

import "unicode/utf8"

// TruncateBody shortens an error body to at most n bytes without splitting a
// UTF-8 sequence, so the text stays valid inside errors and JSON logs.
func TruncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
