// Package posts はプロフィールに登録されたZennアカウントの最新記事を取得する。
package posts

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedContentTypes はフィードとして扱うContent-Type。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
}

// xmlContentTypes はボディを見てフィードか判定するContent-Type。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// isFeedResponse はContent-Typeとボディからレスポンスがフィードかどうかを判定する。
func isFeedResponse(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, ct := range feedContentTypes {
		if mediaType == ct {
			return true
		}
	}
	for _, ct := range xmlContentTypes {
		if mediaType == ct {
			return looksLikeFeed(body)
		}
	}
	return false
}

// looksLikeFeed はXMLの先頭4KBにRSS/Atomのルート要素があるかを調べる。
func looksLikeFeed(body []byte) bool {
	if len(body) > 4096 {
		body = body[:4096]
	}
	prefix := strings.ToLower(string(body))
	return strings.Contains(prefix, "<rss") ||
		strings.Contains(prefix, "<rdf:rdf") ||
		(strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"))
}

// feedLinkFromHTML はHTMLのheadから <link rel="alternate"> のフィードURLを探す。
// Atomを優先し、同種なら先に現れたものを返す。見つからなければ空文字列。
func feedLinkFromHTML(body []byte, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var rss, atom string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return pick(atom, rss)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "head":
				inHead = true
				continue
			case "body":
				return pick(atom, rss)
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}

			resolved := resolveURL(base, href)
			switch {
			case linkType == "application/atom+xml" && atom == "":
				atom = resolved
			case linkType == "application/rss+xml" && rss == "":
				rss = resolved
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return pick(atom, rss)
			}
		}
	}
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// fallbackFeedURL はZennの規約に従い、ページURL + "/feed" を返す。
func fallbackFeedURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + "/feed"
	return u.String()
}
