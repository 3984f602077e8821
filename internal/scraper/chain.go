package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Strategy extracts one value from a parsed page. An empty result means no match.
type Strategy func(doc *goquery.Selection) string

// Chain is an ordered list of strategies; the first non-empty result wins.
type Chain []Strategy

// Resolve returns Placeholder when no strategy matches.
func (c Chain) Resolve(doc *goquery.Selection) string {
	for _, s := range c {
		if v := strings.TrimSpace(s(doc)); v != "" {
			return v
		}
	}
	return Placeholder
}

// BySelector takes the collapsed text of the first element matching sel.
func BySelector(sel string) Strategy {
	return func(doc *goquery.Selection) string {
		return CollapseSpace(doc.Find(sel).First().Text())
	}
}

// ByBlock takes the text of the first element matching sel with one line per text node.
func ByBlock(sel string) Strategy {
	return func(doc *goquery.Selection) string {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			return ""
		}
		return BlockText(node)
	}
}

// ByLabel finds a label element whose text is label, optionally followed by a
// colon, and returns the text node that follows it. When the label is followed
// directly by an element that is not itself a label, that element's text is used.
func ByLabel(labelSel, label string) Strategy {
	want := strings.ToLower(label)
	return func(doc *goquery.Selection) string {
		var out string
		doc.Find(labelSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimRight(CollapseSpace(s.Text()), ": ")
			if strings.ToLower(text) != want {
				return true
			}
			if v := followingText(s.Nodes[0]); v != "" {
				out = v
				return false
			}
			if next := s.Next(); next.Length() > 0 && !next.Is(labelSel) {
				if v := CollapseSpace(next.Text()); v != "" {
					out = v
					return false
				}
			}
			return true
		})
		return out
	}
}

// followingText collects the text nodes between n and its next element sibling.
func followingText(n *html.Node) string {
	var b strings.Builder
	for sib := n.NextSibling; sib != nil && sib.Type != html.ElementNode; sib = sib.NextSibling {
		if sib.Type == html.TextNode {
			b.WriteString(sib.Data)
		}
	}
	return strings.TrimLeft(CollapseSpace(b.String()), ": ")
}

// ByPattern scans the visible body text line by line and returns the first match of re.
func ByPattern(re *regexp.Regexp) Strategy {
	return func(doc *goquery.Selection) string {
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc
		}
		for _, line := range strings.Split(BlockText(body), "\n") {
			if m := re.FindString(line); m != "" {
				return m
			}
		}
		return ""
	}
}

// CollapseSpace trims s and squeezes internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BlockText joins the non-empty text nodes under s with newlines, skipping scripts and styles.
func BlockText(s *goquery.Selection) string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := CollapseSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(lines, "\n")
}
