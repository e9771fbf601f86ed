package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// strippedSelectors are removed before text extraction: boilerplate that
// would otherwise pollute every chunk of every page on a site.
const strippedSelectors = "script, style, header, footer, nav, aside, noscript"

func extractHTML(baseURL string, data []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, wrapExtractionErr(err)
	}

	doc.Find(strippedSelectors).Remove()

	text := normalizeWhitespace(doc.Find("body").Text())
	if text == "" {
		// Some documents have no body element at all.
		text = normalizeWhitespace(doc.Text())
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, wrapExtractionErr(err)
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return &Content{Text: text, Links: links}, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
