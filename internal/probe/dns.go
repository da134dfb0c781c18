package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

const DefaultProbeTimeout = 5 * time.Second

// DNSProber resolves a host's IPv4 and IPv6 addresses independently.
type DNSProber struct {
	Resolver *net.Resolver
	Timeout  time.Duration
}

func NewDNSProber(timeout time.Duration) *DNSProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &DNSProber{Resolver: net.DefaultResolver, Timeout: timeout}
}

// Resolve never fails: resolution problems are reported in the result.
// A missing AAAA record is not an error.
func (p *DNSProber) Resolve(ctx context.Context, host string) domain.DNSResult {
	start := time.Now()
	res := domain.DNSResult{IPv4: []string{}, IPv6: []string{}}

	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		msg := "invalid hostname: " + host
		res.Error = &msg
		res.ResolutionTimeMS = time.Since(start).Milliseconds()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	v4, err := p.Resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		msg := describeDNSError(err)
		res.Error = &msg
	} else {
		res.IPv4 = ipStrings(v4)
		res.Success = len(res.IPv4) > 0
	}

	if v6, err := p.Resolver.LookupIP(ctx, "ip6", host); err == nil {
		res.IPv6 = ipStrings(v6)
	}

	res.ResolutionTimeMS = time.Since(start).Milliseconds()
	return res
}

func describeDNSError(err error) string {
	var de *net.DNSError
	if errors.As(err, &de) {
		switch {
		case de.IsNotFound:
			return "NXDOMAIN: " + de.Error()
		case de.IsTimeout:
			return "DNS timeout: " + de.Error()
		case de.IsTemporary:
			return "SERVFAIL: " + de.Error()
		}
	}
	return err.Error()
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return out
}
