package probe

import (
	"context"
	"net/url"
	"sync"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Prober runs the DNS and TLS diagnostics for a site side by side.
type Prober struct {
	DNS *DNSProber
	TLS *TLSInspector
}

func NewProber(dns *DNSProber, tls *TLSInspector) *Prober {
	return &Prober{DNS: dns, TLS: tls}
}

func (p *Prober) Probe(ctx context.Context, target string) (domain.DNSResult, domain.TLSResult) {
	var (
		wg  sync.WaitGroup
		dns domain.DNSResult
		tls domain.TLSResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dns = p.DNS.Resolve(ctx, extractHost(target))
	}()
	go func() {
		defer wg.Done()
		tls = p.TLS.Inspect(ctx, target)
	}()
	wg.Wait()
	return dns, tls
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
