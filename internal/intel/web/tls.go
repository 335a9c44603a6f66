package web

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"time"
)

type TLSInfo struct {
	Subject       string    `json:"subject"`
	Issuer        string    `json:"issuer"`
	SerialNumber  string    `json:"serial_number"`
	Protocol      string    `json:"protocol"`
	NotBefore     time.Time `json:"not_before"`
	NotAfter      time.Time `json:"not_after"`
	DaysRemaining int       `json:"days_remaining"`
	Expired       bool      `json:"expired"`
	SANs          []string  `json:"san"`
	Trusted       bool      `json:"trusted"`
	VerifyError   string    `json:"verify_error,omitempty"`
}

// certificate reads the leaf certificate without trusting it, so expired or
// self-signed chains are still described. Trust is reported separately.
func (m *Module) certificate(ctx context.Context, host string) (*TLSInfo, error) {
	d := &tls.Dialer{
		NetDialer: m.dialer,
		Config:    &tls.Config{ServerName: host, InsecureSkipVerify: true}, //nolint:gosec
	}
	conn, err := d.DialContext(ctx, "tcp", m.tlsAddr(host))
	if err != nil {
		return nil, fmt.Errorf("tls handshake: %w", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("tls: no peer certificate")
	}
	return describe(host, state, time.Now()), nil
}

func describe(host string, state tls.ConnectionState, now time.Time) *TLSInfo {
	leaf := state.PeerCertificates[0]
	info := &TLSInfo{
		Subject:       leaf.Subject.String(),
		Issuer:        leaf.Issuer.String(),
		SerialNumber:  leaf.SerialNumber.String(),
		Protocol:      tls.VersionName(state.Version),
		NotBefore:     leaf.NotBefore.UTC(),
		NotAfter:      leaf.NotAfter.UTC(),
		DaysRemaining: int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24)),
		Expired:       now.After(leaf.NotAfter),
		SANs:          append([]string{}, leaf.DNSNames...),
	}
	for _, ip := range leaf.IPAddresses {
		info.SANs = append(info.SANs, ip.String())
	}

	pool := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		pool.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{DNSName: host, Intermediates: pool, CurrentTime: now})
	if err != nil {
		info.VerifyError = err.Error()
	} else {
		info.Trusted = true
	}
	return info
}
