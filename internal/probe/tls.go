package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// ExpiryWarningDays is the threshold below which a certificate counts as expiring soon.
const ExpiryWarningDays = 30

// TLSInspector reads the peer certificate of a site. Certificate verification
// is on unless AllowSelfSigned is set.
type TLSInspector struct {
	Timeout         time.Duration
	AllowSelfSigned bool
	RootCAs         *x509.CertPool // nil uses the system pool
	Now             func() time.Time
}

func NewTLSInspector(timeout time.Duration, allowSelfSigned bool) *TLSInspector {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &TLSInspector{Timeout: timeout, AllowSelfSigned: allowSelfSigned, Now: time.Now}
}

// Inspect never fails: handshake, timeout and parse problems end up in Error.
func (t *TLSInspector) Inspect(ctx context.Context, rawURL string) domain.TLSResult {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return tlsFailure("invalid url: " + rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	d := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: t.AllowSelfSigned, //nolint:gosec // opt-in via ALLOW_SELF_SIGNED_CERTS
			RootCAs:            t.RootCAs,
		},
	}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(u.Hostname(), port))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tlsFailure("Timeout")
		}
		return tlsFailure(err.Error())
	}
	defer conn.Close()

	tc, ok := conn.(*tls.Conn)
	if !ok {
		return tlsFailure("not a TLS connection")
	}
	certs := tc.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return tlsFailure("No certificate found")
	}
	leaf := certs[0]

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	expiry := leaf.NotAfter.UTC()
	days := DaysUntil(now(), expiry)
	return domain.TLSResult{
		Valid:           true,
		ExpirationDate:  &expiry,
		DaysUntilExpiry: &days,
		Issuer:          nameOrUnknown(leaf.Issuer.CommonName),
		Subject:         nameOrUnknown(leaf.Subject.CommonName),
		ExpiringSoon:    days < ExpiryWarningDays,
	}
}

// DaysUntil returns floor((expiry - now) / 24h); negative once expired.
func DaysUntil(now, expiry time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

func tlsFailure(msg string) domain.TLSResult {
	return domain.TLSResult{Valid: false, Error: &msg}
}

func nameOrUnknown(cn string) string {
	if cn == "" {
		return "Unknown"
	}
	return cn
}
