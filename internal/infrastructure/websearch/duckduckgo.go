package websearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/ersonp/newsground/internal/domain/entities"
	"github.com/ersonp/newsground/internal/domain/ports"
	"github.com/ersonp/newsground/internal/infrastructure/config"
)

var _ ports.Provider = (*DuckDuckGo)(nil)

// DuckDuckGo scrapes the HTML results page of DuckDuckGo.
type DuckDuckGo struct {
	base
}

// NewDuckDuckGo creates a DuckDuckGo provider.
func NewDuckDuckGo(cfg config.ProviderConfig, client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{base: newBase(NameDuckDuckGo, cfg, client)}
}

// Search fetches the results page and parses its organic hits. DuckDuckGo
// answers throttled clients with 202 and a challenge page.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	body, status, err := d.get(ctx, d.endpoint, url.Values{"q": {query}}, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, rateLimited(d.fail(status, errors.New("throttled")))
	}

	results, err := parseDuckDuckGo(body)
	if err != nil {
		return nil, d.fail(status, err)
	}
	return results, nil
}

func parseDuckDuckGo(body []byte) ([]entities.SearchResult, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	var results []entities.SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") {
			if !hasClass(n, "result--ad") {
				if r, ok := parseResult(n); ok {
					r.RelevanceScore = relevance(len(results), 0.15)
					results = append(results, r)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func parseResult(n *html.Node) (entities.SearchResult, bool) {
	var r entities.SearchResult
	if link := findClass(n, "result__a"); link != nil {
		r.Title = nodeText(link)
		r.URL = resolveRedirect(attr(link, "href"))
	}
	if snippet := findClass(n, "result__snippet"); snippet != nil {
		r.Snippet = nodeText(snippet)
	}
	return r, r.Title != "" && r.URL != ""
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click tracking links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func findClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
