package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"time"
)

// SSLInfo describes the certificate an https target presented. Like the
// lightweight CheckResult, a failed inspection is data, not a Go error.
type SSLInfo struct {
	Host          string     `json:"host"`
	Valid         bool       `json:"valid"`
	Issuer        string     `json:"issuer,omitempty"`
	NotAfter      *time.Time `json:"not_after,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
	Expired       bool       `json:"expired"`
	ExpiringSoon  bool       `json:"expiring_soon"`
	Error         string     `json:"error,omitempty"`
	CheckedAt     time.Time  `json:"checked_at"`
}

// SSLChecker inspects the TLS certificate of an https target: validity,
// issuer, expiry date and an expiring-soon flag (WarnWithin, default 30
// days). SkipVerify disables chain verification so expiry can still be read
// from self-signed certificates; the default verifies.
type SSLChecker struct {
	Timeout    time.Duration
	WarnWithin time.Duration
	SkipVerify bool
}

func NewSSLChecker(timeout time.Duration) *SSLChecker {
	return &SSLChecker{Timeout: timeout, WarnWithin: 30 * 24 * time.Hour}
}

func (c *SSLChecker) Check(ctx context.Context, target string) SSLInfo {
	info := SSLInfo{CheckedAt: time.Now().UTC()}

	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		info.Error = "invalid url"
		return info
	}
	info.Host = u.Hostname()
	if u.Scheme != "https" {
		info.Error = "target is not https"
		return info
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := tls.Dialer{Config: &tls.Config{
		ServerName:         info.Host,
		InsecureSkipVerify: c.SkipVerify,
	}}
	conn, err := dialer.DialContext(dctx, "tcp", net.JoinHostPort(info.Host, port))
	if err != nil {
		info.Error = err.Error()
		return info
	}
	state := conn.(*tls.Conn).ConnectionState()
	conn.Close()

	if len(state.PeerCertificates) == 0 {
		info.Error = "no peer certificate"
		return info
	}
	leaf := state.PeerCertificates[0]
	notAfter := leaf.NotAfter
	info.NotAfter = &notAfter
	info.Issuer = leaf.Issuer.CommonName

	remaining := time.Until(notAfter)
	info.Expired = remaining <= 0
	if days := int(remaining.Hours() / 24); days > 0 {
		info.DaysRemaining = days
	}
	warn := c.WarnWithin
	if warn <= 0 {
		warn = 30 * 24 * time.Hour
	}
	info.ExpiringSoon = !info.Expired && remaining <= warn
	info.Valid = !info.Expired
	return info
}
