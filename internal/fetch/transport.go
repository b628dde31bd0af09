package fetch

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects limits redirect chains. WordPress commonly redirects
// between trailing-slash and canonical forms, but never this deep.
const maxRedirects = 10

// TransportConfig configures the HTTP client built by NewHTTPClient.
type TransportConfig struct {
	// Timeout bounds each request including reading the body.
	Timeout time.Duration

	// ProxyAddress routes connections through a SOCKS5 proxy when set.
	ProxyAddress string

	// UserAgent is sent with every request.
	UserAgent string

	// Headers are sent with every request. A "Cookie" entry is appended to
	// cookies from the jar.
	Headers map[string]string
}

// NewHTTPClient creates the HTTP client used for all requests to the origin.
// It keeps cookies across requests (WordPress consent and cache cookies),
// follows up to ten redirects and optionally dials through a SOCKS5 proxy.
func NewHTTPClient(cfg TransportConfig) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConns = 32
	transport.MaxIdleConnsPerHost = 8
	transport.IdleConnTimeout = 30 * time.Second

	if cfg.ProxyAddress != "" {
		if !isValidProxyAddress(cfg.ProxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, cfg.ProxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", cfg.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", cfg.ProxyAddress)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" || len(cfg.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:      transport,
			userAgent: cfg.UserAgent,
			headers:   cfg.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks that address is "host:port" with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// the User-Agent and custom headers into every request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	for key, value := range t.headers {
		if http.CanonicalHeaderKey(key) == "Cookie" {
			if existing := clone.Header.Get("Cookie"); existing != "" {
				clone.Header.Set("Cookie", existing+"; "+value)
				continue
			}
		}
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
