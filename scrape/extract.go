package scrape

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/mempirate/brochure/config"
)

// irrelevant elements are removed from the body before extracting text.
var irrelevant = map[string]struct{}{
	"script": {},
	"style":  {},
	"img":    {},
	"input":  {},
}

// parse builds a Page from a raw HTML body. The body is decoded to UTF-8 using the
// charset from contentType or the document's <meta> declaration.
func parse(uri string, body []byte, contentType string, format config.ContentFormat) (*Page, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to detect charset")
	}

	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode body")
	}

	// With scripting disabled, <noscript> content is parsed as markup instead of raw text.
	doc, err := html.ParseWithOptions(bytes.NewReader(decoded), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}

	page := &Page{URL: uri}

	title, ok := extractTitle(doc)
	if ok {
		page.Title = title
	} else {
		page.Title = NoTitle
	}

	// The parser always adds a <body>, only one present in the markup has text.
	if bodyNode := findElement(doc, "body"); bodyNode != nil && hasBodyTag(decoded) {
		removeElements(bodyNode, irrelevant)

		if format == config.FormatMarkdown {
			text, err := toMarkdown(uri, bodyNode)
			if err != nil {
				return nil, err
			}
			page.Text = text
		} else {
			page.Text = extractText(bodyNode)
		}
	}

	page.Links = extractLinks(doc)

	return page, nil
}

// hasBodyTag reports whether the markup contains a <body> start tag. The tokenizer
// skips the raw text of <script> and <style>.
func hasBodyTag(body []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "body" {
				return true
			}
		}
	}
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

// extractTitle returns the text of the first <title> element. The boolean is false
// if the document has no title element at all; an empty title element yields ("", true).
func extractTitle(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := extractTitle(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

// findElement returns the first element with the given tag name, depth first.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}

	return nil
}

// removeElements detaches every element whose tag is in tags from the tree under n.
func removeElements(n *html.Node, tags map[string]struct{}) {
	var toRemove []*html.Node

	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode {
			if _, ok := tags[node.Data]; ok {
				toRemove = append(toRemove, node)
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// extractText joins all non-blank text nodes under n, trimmed, one per line.
func extractText(n *html.Node) string {
	var lines []string

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				lines = append(lines, text)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return strings.Join(lines, "\n")
}

// extractLinks returns all non-empty href attributes of <a> elements.
func extractLinks(n *html.Node) []string {
	links := make([]string, 0)

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			for _, attr := range node.Attr {
				if attr.Key == "href" && attr.Val != "" {
					links = append(links, attr.Val)
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return links
}

// toMarkdown converts the (already cleaned) body to markdown.
func toMarkdown(uri string, body *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, body); err != nil {
		return "", errors.Wrap(err, "failed to render body")
	}

	var opts []converter.ConvertOptionFunc
	if u, err := url.Parse(uri); err == nil && u.Host != "" {
		opts = append(opts, converter.WithDomain(u.Host))
	}

	mdBody, err := md.ConvertReader(&buf, opts...)
	if err != nil {
		return "", errors.Wrap(err, "failed to convert HTML to Markdown")
	}

	return strings.TrimSpace(string(mdBody)), nil
}
