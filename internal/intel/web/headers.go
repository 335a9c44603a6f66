package web

import (
	"fmt"
	"net/http"
	"strings"
)

// securityHeaders are graded in this order.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"X-XSS-Protection",
	"Referrer-Policy",
	"Permissions-Policy",
}

type SecurityHeaders struct {
	Present map[string]string `json:"present"`
	Missing []string          `json:"missing"`
	// Score is "present/total", e.g. "5/7".
	Score string `json:"score"`
	Grade string `json:"grade"`
}

func analyzeHeaders(h http.Header) SecurityHeaders {
	sh := SecurityHeaders{Present: map[string]string{}, Missing: []string{}}
	for _, name := range securityHeaders {
		if v := h.Get(name); v != "" {
			sh.Present[name] = v
			continue
		}
		sh.Missing = append(sh.Missing, name)
	}
	n := len(sh.Present)
	sh.Score = fmt.Sprintf("%d/%d", n, len(securityHeaders))
	sh.Grade = grade(n, len(securityHeaders))
	return sh
}

func grade(score, total int) string {
	pct := float64(score) / float64(total) * 100
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}

func headerTechnologies(h http.Header) []string {
	var out []string
	server := strings.ToLower(h.Get("Server"))
	switch {
	case strings.Contains(server, "nginx"):
		out = append(out, "Nginx")
	case strings.Contains(server, "apache"):
		out = append(out, "Apache")
	case strings.Contains(server, "cloudflare"):
		out = append(out, "Cloudflare")
	case strings.Contains(server, "microsoft"), strings.Contains(server, "iis"):
		out = append(out, "IIS")
	case strings.Contains(server, "litespeed"):
		out = append(out, "LiteSpeed")
	}
	powered := strings.ToLower(h.Get("X-Powered-By"))
	switch {
	case strings.Contains(powered, "php"):
		out = append(out, "PHP")
	case strings.Contains(powered, "asp.net"):
		out = append(out, "ASP.NET")
	case strings.Contains(powered, "express"):
		out = append(out, "Express")
	}
	return out
}
