package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Link is an outbound reference cited by a document
type Link struct {
	URL        string   `json:"url"`
	Host       string   `json:"host"`
	Text       string   `json:"text,omitempty"`
	Kind       LinkKind `json:"kind"`
	IsSameHost bool     `json:"is_same_host"`
}

// LinkKind classifies a cited link
type LinkKind string

const (
	LinkKindCitation     LinkKind = "citation"
	LinkKindReference    LinkKind = "reference"
	LinkKindExternalLink LinkKind = "external_link"
)

// bareURL matches URLs written out in plain text or markdown
var bareURL = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

// ExtractLinks returns the distinct http(s) links cited by content. HTML
// anchors are resolved against baseURL; plain text and markdown are scanned
// for bare URLs. baseURL may be empty for local files.
func ExtractLinks(content, baseURL string) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var links []Link
	if looksLikeHTML(content) {
		links, err = htmlLinks(content, base)
		if err != nil {
			return nil, err
		}
	} else {
		for _, raw := range bareURL.FindAllString(content, -1) {
			raw = strings.TrimRight(raw, ".,;:!?")
			if resolved := resolveURL(base, raw); resolved != "" {
				links = append(links, newLink(resolved, "", LinkKindExternalLink, base))
			}
		}
	}

	return dedupeLinks(links), nil
}

func htmlLinks(content string, base *url.URL) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := ""
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = strings.TrimSpace(attr.Val)
				}
			}

			text := ""
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				text = strings.TrimSpace(n.FirstChild.Data)
			}

			if href != "" {
				if resolved := resolveURL(base, href); resolved != "" {
					links = append(links, newLink(resolved, text, classifyLink(href, n), base))
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

func newLink(resolved, text string, kind LinkKind, base *url.URL) Link {
	host := ""
	if parsed, err := url.Parse(resolved); err == nil {
		host = parsed.Host
	}
	return Link{
		URL:        resolved,
		Host:       host,
		Text:       text,
		Kind:       kind,
		IsSameHost: base.Host != "" && host == base.Host,
	}
}

// resolveURL resolves href against base, keeping only http(s) targets
func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// classifyLink determines the kind of a cited link
func classifyLink(href string, n *html.Node) LinkKind {
	lower := strings.ToLower(href)

	if strings.Contains(lower, "cite") || strings.Contains(lower, "#ref") {
		return LinkKindCitation
	}

	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, "reference") {
			return LinkKindCitation
		}
	}

	if strings.Contains(lower, "reference") || strings.Contains(lower, "footnote") {
		return LinkKindReference
	}

	return LinkKindExternalLink
}

func dedupeLinks(links []Link) []Link {
	seen := make(map[string]bool)
	unique := make([]Link, 0, len(links))

	for _, l := range links {
		if !seen[l.URL] {
			seen[l.URL] = true
			unique = append(unique, l)
		}
	}

	return unique
}
