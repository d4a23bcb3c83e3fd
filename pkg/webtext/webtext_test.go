package webtext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title> Cache design </title><style>p{}</style></head>
<body><nav>menu</nav><article><h1>Caches</h1><p>Entries   expire
after a TTL.</p><script>alert(1)</script><p>Full stores evict.</p></article><footer>c</footer></body></html>`

func TestExtractHTML(t *testing.T) {
	title, text, err := ExtractHTML([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Cache design", title)
	assert.Equal(t, "Caches\nEntries expire after a TTL.\nFull stores evict.", text)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(page))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello   world"))
		case "/bin":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0, 1, 2})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 0)
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/html")
	require.NoError(t, err)
	assert.Equal(t, "Cache design", p.Title)
	assert.Contains(t, p.Text, "Full stores evict.")

	p, err = f.Fetch(ctx, srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello world", p.Text)

	_, err = f.Fetch(ctx, srv.URL+"/bin")
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = f.Fetch(ctx, "ftp://example.com")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	f := NewFetcher(time.Second, 5)
	assert.Equal(t, 5, f.maxChars)
	assert.Equal(t, "héllo", truncate("héllo world", 5))
	assert.Equal(t, "hi", truncate("hi", 5))
}
