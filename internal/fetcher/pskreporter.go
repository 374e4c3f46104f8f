package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"propwatch/internal/logging"
)

const (
	maxBodyBytes    = 16 << 20
	maxSnippetRunes = 200
)

var (
	metaRefreshRe    = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]*content\s*=\s*["']\s*\d*\s*;?\s*url\s*=\s*([^"'>]+)`)
	windowLocationRe = regexp.MustCompile(`(?is)window\.location(?:\.href)?\s*(?:=|\.replace\(|\.assign\()\s*["']([^"']+)["']`)
)

// ClientOptions parameterise the PSKReporter transport.
type ClientOptions struct {
	WarmupURL  string
	UserAgent  string
	Timeout    time.Duration
	SessionTTL time.Duration
}

// Client talks to the PSKReporter retrieve API. Redirects are not followed
// automatically; a redirect or interstitial page earns exactly one follow-up
// request.
type Client struct {
	opts   ClientOptions
	http   *http.Client
	jar    http.CookieJar
	logger zerolog.Logger
}

// NewClient constructs the upstream transport.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "propwatch/1.0"
	}

	jar, _ := cookiejar.New(nil)
	return &Client{
		opts: opts,
		jar:  jar,
		http: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logging.Component(logger, "pskreporter_client"),
	}
}

// Warmup visits the site root so that any cookies the upstream hands out are
// in the jar before the first query.
func (c *Client) Warmup(ctx context.Context, now time.Time) (Session, error) {
	session := Session{Obtained: now, Expires: now.Add(c.opts.SessionTTL)}
	if c.opts.WarmupURL == "" {
		return session, nil
	}

	req, err := c.newRequest(ctx, c.opts.WarmupURL, "text/html,*/*")
	if err != nil {
		return Session{}, redactURLError(err, logging.RedactURL)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("warmup request: %w", redactURLError(err, logging.RedactURL))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Session{}, &StatusError{Code: resp.StatusCode}
	}
	session.Cookies = len(c.jar.Cookies(req.URL))
	c.logger.Debug().Int("status", resp.StatusCode).Int("cookies", session.Cookies).Msg("warmup complete")
	return session, nil
}

// Fetch retrieves an XML report document.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, next, err := c.get(ctx, rawURL, logging.RedactURL)
	if err != nil {
		return nil, err
	}
	if next == "" {
		return body, nil
	}

	c.logger.Info().
		Str("url", logging.RedactURL(rawURL)).
		Str("follow_up", logging.RedactOrigin(next)).
		Msg("upstream challenge detected, retrying once")

	body, next, err = c.get(ctx, next, logging.RedactOrigin)
	if err != nil {
		var serr *StatusError
		if errors.As(err, &serr) {
			serr.Snippet = ""
		}
		return nil, fmt.Errorf("challenge follow-up: %w", err)
	}
	if next != "" {
		return nil, ErrChallenge
	}
	return body, nil
}

// get performs a single request. It returns either an XML body or the URL the
// upstream asked to be sent to next. Transport errors carry the request URL
// only in the form produced by redact.
func (c *Client) get(ctx context.Context, rawURL string, redact func(string) string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, rawURL, "application/xml")
	if err != nil {
		return nil, "", redactURLError(err, redact)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", redactURLError(err, redact)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read upstream body: %w", err)
	}

	if isRedirect(resp.StatusCode) {
		if loc := resp.Header.Get("Location"); loc != "" {
			return nil, resolve(req.URL, loc), nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", &StatusError{Code: resp.StatusCode, Snippet: statusSnippet(body)}
	}
	if looksLikeXML(body) {
		return body, "", nil
	}
	if target := challengeTarget(body); target != "" {
		return nil, resolve(req.URL, target), nil
	}
	return nil, "", fmt.Errorf("%w: non-xml response", ErrChallenge)
}

func (c *Client) newRequest(ctx context.Context, rawURL, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", accept)
	return req, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func looksLikeXML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}
	return !looksLikeHTML(trimmed)
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	head := strings.ToLower(string(trimmed[:min(len(trimmed), 256)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

func challengeTarget(body []byte) string {
	if m := metaRefreshRe.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	if m := windowLocationRe.FindSubmatch(body); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// redactURLError rewrites the URL of a *url.Error in err's chain.
func redactURLError(err error, redact func(string) string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = redact(uerr.URL)
	}
	return err
}

// statusSnippet keeps a short excerpt of plain error bodies. Challenge and
// HTML pages are dropped since they embed tokens.
func statusSnippet(body []byte) string {
	if looksLikeHTML(body) || challengeTarget(body) != "" {
		return ""
	}
	return snippet(body)
}

func snippet(body []byte) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(body)), "")
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	return string([]rune(s)[:maxSnippetRunes])
}

var _ Transport = (*Client)(nil)
