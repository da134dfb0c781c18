package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_ExtractsTitleAndBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title> Home </title></head><body><h1>Hello</h1>\n\n<p>world</p></body></html>"))
	}))
	defer s.Close()

	page, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 200, page.StatusCode)
	assert.Equal(t, "OK", page.StatusText)
	assert.Equal(t, "Home", page.Title)
	assert.Equal(t, "Hello world", page.BodyText)
	require.NotNil(t, page.LoadTimeMS)
	assert.GreaterOrEqual(t, *page.LoadTimeMS, int64(0))
}

func TestHTTPFetcher_ErrorStatusIsAResponse(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer s.Close()

	page, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 503, page.StatusCode)
	assert.Equal(t, "Service Unavailable", page.StatusText)
	assert.Equal(t, "boom", page.BodyText)
}

func TestHTTPFetcher_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<body>sign in</body>"))
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	page, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL+"/", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, s.URL+"/login", page.FinalURL)
}

func TestHTTPFetcher_RedirectLoop(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer s.Close()

	_, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL, 2*time.Second)
	var nav *NavigationError
	require.True(t, errors.As(err, &nav))
	assert.Equal(t, CodeTooManyRedirects, nav.Code)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	page, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL, 50*time.Millisecond)
	var nav *NavigationError
	require.True(t, errors.As(err, &nav), "got %v", err)
	assert.Equal(t, CodeTimeout, nav.Code)
	assert.Equal(t, "Navigation timeout of 50 ms exceeded", err.Error())
	assert.Zero(t, page.StatusCode)
	assert.Nil(t, page.LoadTimeMS)
}

func TestHTTPFetcher_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	addr := s.URL
	s.Close()

	_, err := NewHTTPFetcher(false, "").Fetch(context.Background(), addr, time.Second)
	var nav *NavigationError
	require.True(t, errors.As(err, &nav))
	assert.Equal(t, CodeConnectionRefused, nav.Code)
	assert.Contains(t, err.Error(), "net::ERR_CONNECTION_REFUSED at "+addr)
}

func TestHTTPFetcher_UntrustedCertificate(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<body>secure</body>"))
	}))
	defer s.Close()

	_, err := NewHTTPFetcher(false, "").Fetch(context.Background(), s.URL, 2*time.Second)
	var nav *NavigationError
	require.True(t, errors.As(err, &nav))
	assert.Equal(t, CodeCertAuthority, nav.Code)

	page, err := NewHTTPFetcher(true, "").Fetch(context.Background(), s.URL, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "secure", page.BodyText)
}
