// Package webtext downloads a web page and extracts its readable text, so a
// URL can be summarized like a plain text body.
package webtext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 4 * 1024 * 1024
	DefaultMaxChars = 20000
	maxRedirects    = 5
)

var ErrNotHTML = errors.New("response is not an HTML or text document")

// Page is the extracted content of a URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

type Fetcher struct {
	client   *fasthttp.Client
	timeout  time.Duration
	maxChars int
}

func NewFetcher(timeout time.Duration, maxChars int) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Fetcher{
		client: &fasthttp.Client{
			Name:                "az-infer/1.0",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: DefaultMaxBytes,
		},
		timeout:  timeout,
		maxChars: maxChars,
	}
}

// Fetch downloads url and returns its title and visible text, truncated to
// maxChars runes.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return Page{}, fmt.Errorf("unsupported url scheme: %s", url)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return Page{}, context.DeadlineExceeded
	}
	req.SetTimeout(timeout)

	if err := f.client.DoRedirects(req, resp, maxRedirects); err != nil {
		return Page{}, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return Page{}, fmt.Errorf("failed to fetch %s: status %d", url, code)
	}

	contentType := strings.ToLower(string(resp.Header.ContentType()))
	body := append([]byte(nil), resp.Body()...)
	logrus.Debugf("[WEBTEXT] Fetched %s (%d bytes, %s)", url, len(body), contentType)

	switch {
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		title, text, err := ExtractHTML(body)
		if err != nil {
			return Page{}, err
		}
		return Page{URL: url, Title: title, Text: truncate(text, f.maxChars)}, nil
	case strings.HasPrefix(contentType, "text/"):
		return Page{URL: url, Text: truncate(collapse(string(body)), f.maxChars)}, nil
	default:
		return Page{}, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}
}

// ExtractHTML returns the document title and the visible text of body.
func ExtractHTML(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe, svg, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var parts []string
	root.Find("h1, h2, h3, h4, p, li, blockquote, pre, td").Each(func(_ int, s *goquery.Selection) {
		if t := collapse(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return title, collapse(root.Text()), nil
	}
	return title, strings.Join(parts, "\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
