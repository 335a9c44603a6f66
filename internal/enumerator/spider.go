package enumerator

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/utils"
	"github.com/raysh454/reconai/internal/webclient"
)

// DefaultMaxPages caps a crawl when the caller sets no limit.
const DefaultMaxPages = 50

var inlineURL = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Spider walks same-host links breadth first. Pages at depth <= MaxDepth are
// fetched; links found on them are reported but not followed further.
type Spider struct {
	MaxDepth int
	MaxPages int
	wc       webclient.WebClient
	logger   logging.Logger
}

func NewSpider(maxDepth, maxPages int, wc webclient.WebClient, logger logging.Logger) *Spider {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Spider{
		MaxDepth: maxDepth,
		MaxPages: maxPages,
		wc:       wc,
		logger:   logger.With(logging.Component("spider")),
	}
}

type crawl struct {
	spider  *Spider
	root    *utils.URLTools
	depth   map[string]int
	results []string
}

// Enumerate returns the start URL followed by every discovered page in
// discovery order. Fetch errors on individual pages are logged and skipped;
// only a cancelled context or an unparsable start URL is an error.
func (s *Spider) Enumerate(ctx context.Context, target string) ([]string, error) {
	root, err := utils.NewURLTools(target)
	if err != nil {
		return nil, err
	}
	if root.URL.Scheme != "http" && root.URL.Scheme != "https" {
		return nil, fmt.Errorf("spider: unsupported start url %q", target)
	}
	start := root.String()
	c := &crawl{
		spider:  s,
		root:    root,
		depth:   map[string]int{start: 0},
		results: []string{start},
	}

	for i := 0; i < len(c.results); i++ {
		if err := ctx.Err(); err != nil {
			return c.results, err
		}
		page := c.results[i]
		d := c.depth[page]
		if d > s.MaxDepth {
			break
		}
		links, err := c.fetchLinks(ctx, page)
		if err != nil {
			s.logger.Debug("crawl page failed",
				logging.Field{Key: "url", Value: page}, logging.Err(err))
			continue
		}
		if c.add(links, d+1) {
			break
		}
	}
	return c.results, nil
}

// add records unseen same-host links and reports whether MaxPages was reached.
func (c *crawl) add(links []string, depth int) bool {
	for _, l := range links {
		if len(c.results) >= c.spider.MaxPages {
			return true
		}
		if _, seen := c.depth[l]; seen {
			continue
		}
		c.depth[l] = depth
		c.results = append(c.results, l)
	}
	return len(c.results) >= c.spider.MaxPages
}

func (c *crawl) fetchLinks(ctx context.Context, page string) ([]string, error) {
	resp, err := c.spider.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: page, Headers: http.Header{}})
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("received status %d", resp.StatusCode)
	}

	base, err := utils.NewURLTools(page)
	if err != nil {
		return nil, err
	}

	var raw []string
	if strings.HasPrefix(resp.Headers.Get("Content-Type"), "text/html") {
		doc, err := html.Parse(strings.NewReader(string(resp.Body)))
		if err != nil {
			return nil, fmt.Errorf("couldn't parse %s: %w", page, err)
		}
		extractLinks(doc, &raw)
	} else {
		raw = inlineURL.FindAllString(string(resp.Body), -1)
	}

	var out []string
	for _, ref := range raw {
		u, err := base.Resolve(ref)
		if err != nil || !c.root.SameHost(u) {
			continue
		}
		out = append(out, u.String())
	}
	return out, nil
}

// extractLinks collects href and src attributes, plus absolute URLs inside
// inline scripts.
func extractLinks(n *html.Node, links *[]string) {
	if n.Type == html.ElementNode {
		hasSrc := false
		for _, a := range n.Attr {
			if a.Key == "href" || a.Key == "src" {
				*links = append(*links, a.Val)
				hasSrc = hasSrc || a.Key == "src"
			}
		}
		if n.Data == "script" && !hasSrc && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			*links = append(*links, inlineURL.FindAllString(n.FirstChild.Data, -1)...)
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		extractLinks(ch, links)
	}
}
