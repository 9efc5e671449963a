// Package fetch downloads published spreadsheet exports (CSV, TSV or XLSX) so a payoff table
// can be analysed from a link instead of a paste.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/Harry10012003/decision-support-tool/internal/logger"
)

var (
	ErrUnsupportedScheme = errors.New("only http and https links are supported")
	ErrTooLarge          = errors.New("document exceeds the size limit")
	ErrForbiddenAddress  = errors.New("link points to a private or local address")
)

var (
	sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")
	thisNetwork        = netip.MustParsePrefix("0.0.0.0/8")
)

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Document is a downloaded file. Name carries an extension the parser understands.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// ClientConfig tunes retries and limits. Zero values fall back to defaults.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	MaxBytes       int64
	// AllowPrivateNetworks permits loopback, private and link-local targets. Leave it off
	// when the links come from users of a network-facing service.
	AllowPrivateNetworks bool
}

// Client downloads documents over HTTP with retry.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	maxBytes       int64
}

// NewClient creates a new fetch client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1 << 20
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.AllowPrivateNetworks {
		// checked after DNS resolution, for redirects as well; a proxy would hide the target
		dialer.Control = guardAddress
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		maxBytes:       cfg.MaxBytes,
	}
}

// Fetch downloads rawURL. Transport errors and 5xx responses are retried with linear backoff.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s: %w", u.Host, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	return &Document{
		Name:        documentName(u, contentType),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, target string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv, text/tab-separated-values, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, */*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// drop the URL: Telegram file links carry the bot token in their path
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			if errors.Is(err, ErrForbiddenAddress) {
				return nil, err
			}
			lastErr = err
			logger.Warn("fetch attempt %d/%d failed: %v", i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			logger.Warn("fetch attempt %d/%d failed: %v", i+1, c.maxRetries, lastErr)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// documentName derives a file name from the link, adding an extension from the content type
// when the path has none (spreadsheet export links rarely end in .csv).
func documentName(u *url.URL, contentType string) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "document"
	}
	if path.Ext(name) != "" {
		return name
	}

	if format := u.Query().Get("format"); format == "csv" || format == "xlsx" || format == "tsv" {
		return name + "." + format
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return name
	}
	switch mediaType {
	case "text/csv":
		return name + ".csv"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return name + ".xlsx"
	case "text/tab-separated-values":
		return name + ".tsv"
	default:
		return name
	}
}

// guardAddress is a net.Dialer Control hook that refuses connections to non-public addresses.
func guardAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip), thisNetwork.Contains(ip):
		return false
	}
	return true
}
