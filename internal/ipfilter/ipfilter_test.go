package ipfilter

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		allowedIPs []string
		wantCount  int
	}{
		{"empty list", []string{}, 0},
		{"single IP", []string{"192.168.1.1"}, 1},
		{"CIDR range", []string{"10.0.0.0/8"}, 1},
		{"multiple entries", []string{"192.168.1.1", "10.0.0.0/8", "172.16.0.0/12"}, 3},
		{"with whitespace", []string{"  192.168.1.1  ", " 10.0.0.0/8 ", "   "}, 2},
		{"invalid entries ignored", []string{"192.168.1.1", "invalid", "10.0.0.0/33"}, 1},
		{"IPv6", []string{"::1", "2001:db8::/32"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.allowedIPs, newTestLogger())
			assert.Equal(t, tt.wantCount, f.Count())
			assert.Equal(t, tt.wantCount > 0, f.Enabled())
		})
	}
}

func TestFilter_IsAllowed(t *testing.T) {
	tests := []struct {
		name       string
		allowedIPs []string
		testIP     string
		want       bool
	}{
		{"empty filter allows all", nil, "1.2.3.4", true},
		{"exact IP match", []string{"192.168.1.1"}, "192.168.1.1", true},
		{"exact IP no match", []string{"192.168.1.1"}, "192.168.1.2", false},
		{"CIDR contains", []string{"192.168.0.0/16"}, "192.168.1.100", true},
		{"CIDR not contains", []string{"192.168.0.0/16"}, "10.0.0.1", false},
		{"non-canonical CIDR", []string{"192.168.1.7/24"}, "192.168.1.200", true},
		{"IPv4-mapped IPv6 client", []string{"10.0.0.0/8"}, "::ffff:10.1.2.3", true},
		{"IPv6 exact", []string{"::1"}, "::1", true},
		{"IPv6 CIDR", []string{"2001:db8::/32"}, "2001:db8::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.allowedIPs, newTestLogger())
			assert.Equal(t, tt.want, f.IsAllowed(netip.MustParseAddr(tt.testIP)))
		})
	}
}

func TestFilter_IsAllowedAddr(t *testing.T) {
	f := New([]string{"192.168.1.0/24", "fe80::/10"}, newTestLogger())

	assert.True(t, f.IsAllowedAddr("192.168.1.50:8080"))
	assert.False(t, f.IsAllowedAddr("10.0.0.1:8080"))
	assert.True(t, f.IsAllowedAddr("192.168.1.50"))
	assert.True(t, f.IsAllowedAddr("[fe80::1%eth0]:443"))
	assert.False(t, f.IsAllowedAddr("invalid"))
}

func TestFilter_Middleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowedIPs []string
		remoteAddr string
		xff        string
		wantStatus int
	}{
		{"disabled filter passes", nil, "8.8.8.8:1234", "", http.StatusTeapot},
		{"allowed peer", []string{"127.0.0.1"}, "127.0.0.1:1234", "", http.StatusTeapot},
		{"denied peer", []string{"127.0.0.1"}, "8.8.8.8:1234", "", http.StatusForbidden},
		{"forwarded header ignored", []string{"127.0.0.1"}, "8.8.8.8:1234", "127.0.0.1", http.StatusForbidden},
		{"garbage remote addr", []string{"127.0.0.1"}, "not-an-ip", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.allowedIPs, newTestLogger())
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			w := httptest.NewRecorder()

			f.Middleware(next).ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
