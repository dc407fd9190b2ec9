package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		baseURL string
		want    string
	}{
		{"https://api.example.com", "api.example.com:443"},
		{"http://api.example.com/rest/v1", "api.example.com:80"},
		{"http://localhost:8080", "localhost:8080"},
		{"", ""},
		{"not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			if got := probeAddress(tt.baseURL); got != tt.want {
				t.Errorf("probeAddress(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		})
	}
}

func TestSystem_Online(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	s := NewSystem("http://" + ln.Addr().String())
	if !s.Online(context.Background()) {
		t.Error("Online() = false with a listening server")
	}
}

func TestSystem_OnlineServerDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := NewSystem("http://" + addr)
	if !s.Online(context.Background()) {
		t.Error("Online() = false for a refused connection, want true so the request reports the outage")
	}
}

func TestNoRoute(t *testing.T) {
	opErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network unreachable", opErr(syscall.ENETUNREACH), true},
		{"host unreachable", opErr(syscall.EHOSTUNREACH), true},
		{"network down", opErr(syscall.ENETDOWN), true},
		{"resolver unreachable", &net.DNSError{Err: "dial udp: network is unreachable", Name: "api.example.com"}, true},
		{"unknown host", &net.DNSError{Err: "no such host", Name: "api.example.com", IsNotFound: true}, false},
		{"connection refused", opErr(syscall.ECONNREFUSED), false},
		{"timeout", fmt.Errorf("dial: %w", context.DeadlineExceeded), false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := noRoute(tt.err); got != tt.want {
				t.Errorf("noRoute(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSystem_OnlineNoRoute(t *testing.T) {
	s := NewSystem("https://api.example.com")
	s.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: network, Err: os.NewSyscallError("connect", syscall.ENETUNREACH)}
	}
	if s.Online(context.Background()) {
		t.Error("Online() = true when the network is unreachable")
	}
}

func TestSystem_OnlineWithoutHost(t *testing.T) {
	s := NewSystem("")
	if !s.Online(context.Background()) {
		t.Error("Online() should default to true when no host is configured")
	}
}

func TestStatic(t *testing.T) {
	s := &Static{IsOnline: false}
	if s.Online(context.Background()) {
		t.Error("Static.Online() = true, want false")
	}
	if err := s.Copy("Parque del Perro"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if s.Clipboard != "Parque del Perro" {
		t.Errorf("Clipboard = %q", s.Clipboard)
	}
}
