package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultUserAgent    = "sitemonitor/1.0 (+uptime check)"

	maxRedirects = 10
	maxBodyBytes = 5 << 20
)

// PageFetcher navigates to a URL and reports what it saw. A non-nil error
// means no response was obtained at all.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (domain.PageResult, error)
}

// Screenshotter is implemented by fetchers able to render the last page to an image.
type Screenshotter interface {
	CaptureScreenshot(ctx context.Context, destPath string) error
}

// Navigation error codes, in the net::ERR_* form the classifier keys on.
const (
	CodeTimeout           = "TIMEOUT"
	CodeNameNotResolved   = "ERR_NAME_NOT_RESOLVED"
	CodeConnectionRefused = "ERR_CONNECTION_REFUSED"
	CodeSSLProtocol       = "ERR_SSL_PROTOCOL_ERROR"
	CodeCertAuthority     = "ERR_CERT_AUTHORITY_INVALID"
	CodeTooManyRedirects  = "ERR_TOO_MANY_REDIRECTS"
	CodeNavigationFailed  = "ERR_FAILED"
)

var (
	errTooManyRedirects = errors.New("too many redirects")

	// ErrScreenshotUnsupported is returned by wrappers whose inner fetcher cannot capture.
	ErrScreenshotUnsupported = errors.New("screenshot capture not supported")
)

// NavigationError describes a navigation that produced no response.
type NavigationError struct {
	Code    string
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Code == CodeTimeout {
		return fmt.Sprintf("Navigation timeout of %d ms exceeded", e.Timeout.Milliseconds())
	}
	return fmt.Sprintf("net::%s at %s: %v", e.Code, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// HTTPFetcher is the built-in PageFetcher. It follows redirects, reads the
// body and extracts title and visible text with goquery. It does not render
// JavaScript and does not implement Screenshotter.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPFetcher(allowSelfSigned bool, userAgent string) *HTTPFetcher {
	tr := cleanhttp.DefaultPooledTransport()
	if allowSelfSigned {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via ALLOW_SELF_SIGNED_CERTS
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		Client: &http.Client{
			Transport: tr,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		UserAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (domain.PageResult, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.PageResult{}, &NavigationError{Code: CodeNavigationFailed, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.Client.Do(req)
	if err != nil {
		return domain.PageResult{}, navigationError(target, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.PageResult{}, navigationError(target, timeout, err)
	}
	load := time.Since(start).Milliseconds()

	page := domain.PageResult{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		FinalURL:   resp.Request.URL.String(),
		LoadTimeMS: &load,
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw))); err == nil {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
		page.BodyText = collapseSpace(doc.Find("body").Text())
	} else {
		page.BodyText = collapseSpace(string(raw))
	}
	return page, nil
}

func navigationError(target string, timeout time.Duration, err error) *NavigationError {
	return &NavigationError{Code: navigationCode(err), URL: target, Timeout: timeout, Err: err}
}

func navigationCode(err error) string {
	var (
		dnsErr     *net.DNSError
		netErr     net.Error
		unknownCA  x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
		hostErr    x509.HostnameError
		verifyErr  *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout
	case errors.Is(err, errTooManyRedirects):
		return CodeTooManyRedirects
	case errors.As(err, &dnsErr):
		return CodeNameNotResolved
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnectionRefused
	case errors.As(err, &unknownCA), errors.As(err, &invalidErr), errors.As(err, &hostErr), errors.As(err, &verifyErr):
		return CodeCertAuthority
	case errors.As(err, &recordErr):
		return CodeSSLProtocol
	default:
		return CodeNavigationFailed
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
