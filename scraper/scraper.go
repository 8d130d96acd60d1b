package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly"
	"go.uber.org/zap"
)

// DefaultMaxBodySize caps the response body a Scraper accepts.
const DefaultMaxBodySize = 32 << 20

// ErrBodyTooLarge is wrapped by FetchError when a response exceeds the
// scraper's body limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Fetcher retrieves a remote resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError reports a failed fetch: the transport failed or the server
// answered with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Scraper fetches resources with a colly collector.
type Scraper struct {
	// MaxBodySize is the largest body Fetch returns. Zero or less means no limit.
	MaxBodySize int

	timeout   time.Duration
	userAgent string
	log       *zap.Logger
}

// NewScraper creates a Scraper. A zero timeout keeps colly's default.
func NewScraper(timeout time.Duration, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		MaxBodySize: DefaultMaxBodySize,
		timeout:     timeout,
		userAgent:   "toon-shelf/1.0",
		log:         logger,
	}
}

func (s *Scraper) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	)
	// non-2xx responses are reported below instead of by colly
	c.ParseHTTPErrorResponse = true
	// One byte over the limit tells a truncated body apart from one that fits.
	c.MaxBodySize = 0
	if s.MaxBodySize > 0 {
		c.MaxBodySize = s.MaxBodySize + 1
	}
	if s.timeout > 0 {
		c.WithTransport(&http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: s.timeout}).DialContext,
			TLSHandshakeTimeout:   s.timeout,
			ResponseHeaderTimeout: s.timeout,
		})
	}

	var body []byte
	var status int

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		s.log.Debug("Visiting", zap.String("url", r.URL.String()))
	})

	c.OnResponse(func(r *colly.Response) {
		s.log.Debug("Response received", zap.String("url", url), zap.Int("status", r.StatusCode))
		status = r.StatusCode
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if status < 200 || status > 299 {
		return nil, &FetchError{URL: url, StatusCode: status}
	}
	if s.MaxBodySize > 0 && len(body) > s.MaxBodySize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, s.MaxBodySize)}
	}

	return body, nil
}
