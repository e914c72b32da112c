package github

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup returns the text of a README with HTML tags, comments and
// the contents of script and style elements removed and whitespace runs
// collapsed to single spaces.
func StripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.Join(strings.Fields(b.String()), " ")
			}
			return strings.Join(strings.Fields(s), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isRaw(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isRaw(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRaw(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}
