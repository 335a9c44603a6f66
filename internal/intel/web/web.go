// Package web implements the HTTP surface intelligence module: landing page
// headers, technology fingerprints, TLS certificate and a shallow crawl.
package web

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/enumerator"
	"github.com/raysh454/reconai/internal/fetcher"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/utils"
	"github.com/raysh454/reconai/internal/webclient"
)

const Name = "web"

type Report struct {
	URL             string            `json:"url"`
	HTTPS           bool              `json:"https"`
	StatusCodes     map[string]int    `json:"status_codes"`
	Title           string            `json:"title,omitempty"`
	Server          string            `json:"server,omitempty"`
	PoweredBy       string            `json:"powered_by,omitempty"`
	Technologies    []string          `json:"technologies"`
	SecurityHeaders SecurityHeaders   `json:"security_headers"`
	TLS             *TLSInfo          `json:"tls,omitempty"`
	RobotsTxt       string            `json:"robots_txt,omitempty"`
	Sitemap         bool              `json:"sitemap"`
	Pages           []fetcher.Page    `json:"pages,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
}

type Module struct {
	cfg    config.WebModuleConfig
	wc     webclient.WebClient
	logger logging.Logger
	dialer *net.Dialer

	// tlsAddr maps the target host to the address the certificate is read from.
	tlsAddr func(host string) string
}

func New(cfg config.WebModuleConfig, wc webclient.WebClient, logger logging.Logger) *Module {
	if cfg.TLSPort <= 0 {
		cfg.TLSPort = 443
	}
	port := strconv.Itoa(cfg.TLSPort)
	return &Module{
		cfg:     cfg,
		wc:      wc,
		logger:  logger.With(logging.Component("intel.web")),
		dialer:  &net.Dialer{Timeout: 5 * time.Second},
		tlsAddr: func(host string) string { return net.JoinHostPort(host, port) },
	}
}

func (m *Module) Name() string { return Name }

// Gather fetches the landing page over HTTPS and HTTP. It fails when neither
// answers; every later probe only records its error.
func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, _ module.Options) (any, error) {
	host, err := utils.NormalizeDomain(target)
	if err != nil {
		return nil, err
	}
	r := &Report{StatusCodes: map[string]int{}, Technologies: []string{}}
	errs := map[string]string{}

	var landing *webclient.Response
	for _, scheme := range []string{"https", "http"} {
		u := scheme + "://" + host + "/"
		resp, err := m.wc.Get(ctx, u)
		if err != nil {
			errs[scheme] = err.Error()
			continue
		}
		r.StatusCodes[scheme] = resp.StatusCode
		if landing == nil {
			landing = resp
			r.URL = u
			r.HTTPS = scheme == "https"
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if landing == nil {
		return nil, fmt.Errorf("web: %s unreachable: https: %s; http: %s", host, errs["https"], errs["http"])
	}

	r.Server = landing.Headers.Get("Server")
	r.PoweredBy = landing.Headers.Get("X-Powered-By")
	r.SecurityHeaders = analyzeHeaders(landing.Headers)
	r.Technologies = append(r.Technologies, headerTechnologies(landing.Headers)...)
	title, markers, err := inspectHTML(landing)
	if err != nil {
		errs["html"] = err.Error()
	}
	r.Title = title
	r.Technologies = dedupe(append(r.Technologies, markers...))

	base := strings.TrimSuffix(r.URL, "/")
	if resp, err := m.wc.Get(ctx, base+"/robots.txt"); err == nil && resp.StatusCode == 200 {
		r.RobotsTxt = string(resp.Body)
	}
	if resp, err := m.wc.Get(ctx, base+"/sitemap.xml"); err == nil && resp.StatusCode == 200 {
		r.Sitemap = true
	}

	if r.HTTPS {
		info, err := m.certificate(ctx, host)
		if err != nil {
			errs["tls"] = err.Error()
		}
		r.TLS = info
	}

	if m.cfg.CrawlDepth > 0 {
		spider := enumerator.NewSpider(m.cfg.CrawlDepth, m.cfg.MaxPages, m.wc, m.logger)
		urls, err := spider.Enumerate(ctx, r.URL)
		if err != nil {
			errs["crawl"] = err.Error()
		}
		if len(urls) > 0 {
			f, err := fetcher.New(fetcher.Config{MaxConcurrency: m.cfg.FetchWorkers}, m.wc, m.logger)
			if err != nil {
				return nil, err
			}
			r.Pages = f.Fetch(ctx, urls)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		r.Errors = errs
	}
	m.logger.Debug("web probe finished",
		logging.Field{Key: "url", Value: r.URL},
		logging.Field{Key: "grade", Value: r.SecurityHeaders.Grade},
		logging.Field{Key: "technologies", Value: len(r.Technologies)},
	)
	return r, nil
}
