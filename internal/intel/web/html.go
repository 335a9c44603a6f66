package web

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/reconai/internal/webclient"
)

// scriptMarkers map a substring of a script src to the technology it implies.
var scriptMarkers = []struct {
	needle string
	tech   string
}{
	{"wp-content/", "WordPress"},
	{"wp-includes/", "WordPress"},
	{"jquery", "jQuery"},
	{"react", "React"},
	{"angular", "Angular"},
	{"vue", "Vue.js"},
	{"bootstrap", "Bootstrap"},
	{"googletagmanager.com", "Google Tag Manager"},
	{"cdn.shopify.com", "Shopify"},
}

// inspectHTML returns the page title and the technologies implied by the
// generator meta tag and script sources. Non-HTML bodies yield nothing.
func inspectHTML(resp *webclient.Response) (string, []string, error) {
	ct := resp.Headers.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return "", nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", nil, err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	var techs []string
	if gen, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok {
		if name := generatorName(gen); name != "" {
			techs = append(techs, name)
		}
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.ToLower(s.AttrOr("src", ""))
		for _, mk := range scriptMarkers {
			if strings.Contains(src, mk.needle) {
				techs = append(techs, mk.tech)
			}
		}
	})
	return title, techs, nil
}

// generatorName drops trailing version tokens: "WordPress 6.4.2" gives "WordPress".
func generatorName(gen string) string {
	fields := strings.Fields(gen)
	for len(fields) > 1 && isVersion(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func isVersion(tok string) bool {
	tok = strings.TrimLeft(tok, "vV")
	return tok != "" && tok[0] >= '0' && tok[0] <= '9'
}

func dedupe(xs []string) []string {
	seen := make(map[string]struct{}, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
