package evidence

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var breakTags = strings.NewReplacer(
	"<br>", " ", "<br/>", " ", "<br />", " ",
	"<BR>", " ", "</p>", " </p>", "</P>", " </P>",
)

// CleanText turns an upstream text field into plain text: percent-escapes
// are decoded, markup and entities are stripped and whitespace collapses to
// single spaces. Placeholder values come back empty.
func CleanText(raw string) string {
	return plainText(unescapePercent(raw))
}

// unescapePercent decodes every valid %XX escape and keeps anything else,
// including a lone "%", as written. "+" is not a space here.
func unescapePercent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

// plainText strips markup from already decoded text.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(breakTags.Replace(s)))
		if err == nil {
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	switch s {
	case "-", "None", "null":
		return ""
	}
	return s
}
