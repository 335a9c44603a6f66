package network

import (
	"context"
	"errors"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
)

// listen accepts connections on a random loopback port and writes banner to
// each one. It returns the port.
func listen(t *testing.T, banner string) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				if banner != "" {
					_, _ = io.WriteString(conn, banner)
				}
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, _ = io.Copy(io.Discard, conn)
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func newTestModule(ports ...int) *Module {
	return New(config.NetworkModuleConfig{
		Ports:       ports,
		DialTimeout: time.Second,
		BannerWait:  200 * time.Millisecond,
		Concurrency: 2,
	}, logging.NewStdoutLogger("test"))
}

func TestGather_OpenPortsAndBanners(t *testing.T) {
	t.Parallel()
	ssh := listen(t, "SSH-2.0-OpenSSH_9.6\r\nignored second line\r\n")
	quiet := listen(t, "")
	closed := closedPort(t)

	m := newTestModule(closed, ssh, quiet)
	out, err := m.Gather(context.Background(), "127.0.0.1", model.TargetDomain, module.Options{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	r := out.(*Report)
	if r.IP != "127.0.0.1" || r.ScannedPorts != 3 {
		t.Errorf("IP=%q ScannedPorts=%d", r.IP, r.ScannedPorts)
	}

	want := []OpenPort{
		{Port: ssh, Service: ServiceName(ssh), Banner: "SSH-2.0-OpenSSH_9.6"},
		{Port: quiet, Service: ServiceName(quiet)},
	}
	if want[0].Port > want[1].Port {
		want[0], want[1] = want[1], want[0]
	}
	if !reflect.DeepEqual(r.OpenPorts, want) {
		t.Errorf("OpenPorts = %+v, want %+v", r.OpenPorts, want)
	}
}

func TestGather_ResolvesDomain(t *testing.T) {
	t.Parallel()
	port := listen(t, "")
	m := newTestModule(port)
	m.lookup = func(_ context.Context, host string) ([]net.IPAddr, error) {
		if host != "example.test" {
			t.Errorf("lookup host = %q", host)
		}
		return []net.IPAddr{{IP: net.ParseIP("::1")}, {IP: net.ParseIP("127.0.0.1")}}, nil
	}

	out, err := m.Gather(context.Background(), "https://Example.Test/", model.TargetDomain, module.Options{})
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	r := out.(*Report)
	if r.Host != "example.test" || r.IP != "127.0.0.1" {
		t.Errorf("Host=%q IP=%q, want the IPv4 address", r.Host, r.IP)
	}
	if len(r.OpenPorts) != 1 || r.OpenPorts[0].Port != port {
		t.Errorf("OpenPorts = %+v", r.OpenPorts)
	}
}

func TestGather_ResolveFailure(t *testing.T) {
	t.Parallel()
	m := newTestModule(80)
	boom := errors.New("no such host")
	m.lookup = func(context.Context, string) ([]net.IPAddr, error) { return nil, boom }

	_, err := m.Gather(context.Background(), "example.test", model.TargetDomain, module.Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestGather_CancelledContext(t *testing.T) {
	t.Parallel()
	m := newTestModule(listen(t, ""))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Gather(ctx, "127.0.0.1", model.TargetDomain, module.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestServiceName(t *testing.T) {
	t.Parallel()
	cases := map[int]string{22: "SSH", 587: "SMTP (Submission)", 27017: "MongoDB", 31337: "unknown"}
	for port, want := range cases {
		if got := ServiceName(port); got != want {
			t.Errorf("ServiceName(%d) = %q, want %q", port, got, want)
		}
	}
}

func TestCleanBanner(t *testing.T) {
	t.Parallel()
	if got := cleanBanner([]byte("\x00220 mail.example.test ESMTP\r\n250 ok")); got != "220 mail.example.test ESMTP" {
		t.Errorf("cleanBanner = %q", got)
	}
	if got := cleanBanner(nil); got != "" {
		t.Errorf("cleanBanner(nil) = %q", got)
	}
}
