// Package textutil turns listing descriptions into plain text.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return collapse(doc.Text())
}

// Excerpt returns at most max runes of text, cut at a word boundary.
func Excerpt(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := len(runes)
	for i := len(runes) - 1; i > max/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + "…"
}

// UpperFirst uppercases the first rune only.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
