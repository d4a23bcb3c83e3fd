package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/AzielCF/az-infer/pkg/respcache"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const HeaderCache = "X-Cache"

// ResponseCache serves repeated requests from cache. Only 2xx JSON bodies
// are stored; errors and panics from later handlers pass through untouched.
func ResponseCache(cache *respcache.Middleware) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := respcache.Request{
			Method:   c.Method(),
			Path:     c.OriginalURL(),
			Body:     cacheBody(c),
			ClientID: c.IP(),
		}

		resp, outcome, err := cache.Serve(c.UserContext(), req, func(_ context.Context) (respcache.Response, error) {
			if err := c.Next(); err != nil {
				return respcache.Response{}, err
			}
			return respcache.Response{
				Status: c.Response().StatusCode(),
				Body:   c.Response().Body(),
			}, nil
		})
		if err != nil {
			return err
		}

		switch outcome {
		case respcache.OutcomeHit:
			c.Set(HeaderCache, "HIT")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
			return c.Status(resp.Status).Send(resp.Body)
		case respcache.OutcomeBypass:
			c.Set(HeaderCache, "BYPASS")
		default:
			c.Set(HeaderCache, "MISS")
		}
		return nil
	}
}

type filePart struct {
	ContentType string `json:"content_type"`
	SHA256      string `json:"sha256"`
}

// cacheBody returns the bytes to fingerprint. Multipart bodies carry a random
// boundary, so they are replaced by their fields plus the content type and
// digest of each file.
func cacheBody(c *fiber.Ctx) []byte {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return c.Body()
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.Body()
	}

	canonical := map[string]any{"fields": form.Value}
	files := map[string][]filePart{}
	for name, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				logrus.WithError(err).Debug("[CACHE] Could not read multipart file, hashing raw body")
				return c.Body()
			}
			h := sha256.New()
			_, err = io.Copy(h, f)
			_ = f.Close()
			if err != nil {
				return c.Body()
			}
			files[name] = append(files[name], filePart{
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				SHA256:      hex.EncodeToString(h.Sum(nil)),
			})
		}
	}
	canonical["files"] = files

	data, err := json.Marshal(canonical)
	if err != nil {
		return c.Body()
	}
	return data
}
