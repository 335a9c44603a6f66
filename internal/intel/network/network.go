// Package network implements the TCP port and banner intelligence module.
package network

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/utils"
)

const Name = "network"

const maxBanner = 256

var services = map[int]string{
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	465:   "SMTPS",
	587:   "SMTP (Submission)",
	993:   "IMAPS",
	995:   "POP3S",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5900:  "VNC",
	8080:  "HTTP-Proxy",
	8443:  "HTTPS-Alt",
	27017: "MongoDB",
}

// ServiceName returns the conventional service on port, or "unknown".
func ServiceName(port int) string {
	if s, ok := services[port]; ok {
		return s
	}
	return "unknown"
}

type Report struct {
	Host         string     `json:"host"`
	IP           string     `json:"ip"`
	ScannedPorts int        `json:"scanned_ports"`
	OpenPorts    []OpenPort `json:"open_ports"`
}

type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
	Banner  string `json:"banner,omitempty"`
}

type Module struct {
	cfg    config.NetworkModuleConfig
	logger logging.Logger
	dialer *net.Dialer
	lookup func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func New(cfg config.NetworkModuleConfig, logger logging.Logger) *Module {
	if len(cfg.Ports) == 0 {
		cfg.Ports = config.DefaultPorts
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.BannerWait <= 0 {
		cfg.BannerWait = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	return &Module{
		cfg:    cfg,
		logger: logger.With(logging.Component("intel.network")),
		dialer: &net.Dialer{Timeout: cfg.DialTimeout},
		lookup: net.DefaultResolver.LookupIPAddr,
	}
}

func (m *Module) Name() string { return Name }

// Gather probes the configured ports on the target's first IPv4 address, or
// its first address of any family when it has no IPv4 address. An IP literal
// target is probed as is.
func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, _ module.Options) (any, error) {
	host, ip, err := m.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	r := &Report{Host: host, IP: ip, ScannedPorts: len(m.cfg.Ports), OpenPorts: []OpenPort{}}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for _, port := range m.cfg.Ports {
		g.Go(func() error {
			op, open := m.probe(gctx, ip, port)
			if open {
				mu.Lock()
				r.OpenPorts = append(r.OpenPorts, op)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(r.OpenPorts, func(i, j int) bool { return r.OpenPorts[i].Port < r.OpenPorts[j].Port })
	m.logger.Debug("port scan finished",
		logging.Field{Key: "ip", Value: ip},
		logging.Field{Key: "scanned", Value: r.ScannedPorts},
		logging.Field{Key: "open", Value: len(r.OpenPorts)},
	)
	return r, nil
}

func (m *Module) resolve(ctx context.Context, target string) (host, ip string, err error) {
	if addr := net.ParseIP(strings.TrimSpace(target)); addr != nil {
		return addr.String(), addr.String(), nil
	}
	host, err = utils.NormalizeDomain(target)
	if err != nil {
		return "", "", err
	}
	addrs, err := m.lookup(ctx, host)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", "", fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return host, a.IP.String(), nil
		}
	}
	return host, addrs[0].IP.String(), nil
}

// probe reports whether ip:port accepts a TCP connection and reads whatever
// the service volunteers within BannerWait.
func (m *Module) probe(ctx context.Context, ip string, port int) (OpenPort, bool) {
	conn, err := m.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return OpenPort{}, false
	}
	defer conn.Close()

	op := OpenPort{Port: port, Service: ServiceName(port)}
	_ = conn.SetReadDeadline(time.Now().Add(m.cfg.BannerWait))
	buf := make([]byte, maxBanner)
	n, _ := conn.Read(buf)
	op.Banner = cleanBanner(buf[:n])
	return op, true
}

// cleanBanner keeps the first line with control characters removed.
func cleanBanner(b []byte) string {
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, line))
}
