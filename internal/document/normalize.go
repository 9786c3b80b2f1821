package document

import (
	"net/url"
	"regexp"
	"strings"

	"mvdan.cc/xurls/v2"
)

// Bare links longer than this carry tracking junk more often than
// meaning; they are reduced to their host before chunking so they do
// not burn prompt tokens.
const maxInlineURLLength = 48

var (
	urlRe      = xurls.Strict()
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
	interiorWS = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize prepares extracted text for chunking: consistent line
// endings, collapsed whitespace, and long bare URLs reduced to their
// host.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	text = urlRe.ReplaceAllStringFunc(text, func(match string) string {
		if len(match) <= maxInlineURLLength {
			return match
		}

		u, err := url.Parse(match)
		if err != nil || u.Host == "" {
			return match
		}

		return u.Host
	})

	text = trailingWS.ReplaceAllString(text, "\n")
	text = interiorWS.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
