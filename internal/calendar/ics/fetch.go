// Package ics provides a read-only calendar provider backed by ICS feeds.
package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFetchTimeout bounds a single feed download.
const DefaultFetchTimeout = 15 * time.Second

// cacheEntry holds the last body served for a URL with its validators.
type cacheEntry struct {
	etag         string
	lastModified string
	body         []byte
}

// fetcher downloads feeds honoring ETag and Last-Modified. Cached bodies
// are reused on 304 and on network or server errors.
type fetcher struct {
	client *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func newFetcher(client *http.Client, logger *zap.Logger) *fetcher {
	return &fetcher{
		client: client,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

func (f *fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("feed URL is empty")
	}

	f.mu.Lock()
	cached, hasCache := f.cache[url]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}
	if cached.lastModified != "" {
		req.Header.Set("If-Modified-Since", cached.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if hasCache && ctx.Err() == nil {
			f.logger.Warn("ics fetch failed, using cached body", zap.String("url", redactURL(url)), zap.Error(err))
			return cached.body, nil
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read feed: %w", err)
		}
		f.mu.Lock()
		f.cache[url] = cacheEntry{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		return body, nil

	case http.StatusNotModified:
		if !hasCache {
			return nil, errors.New("received 304 Not Modified without cached body")
		}
		return cached.body, nil

	default:
		if hasCache && resp.StatusCode >= http.StatusInternalServerError {
			f.logger.Warn("ics fetch non-OK, using cached body",
				zap.String("url", redactURL(url)), zap.Int("status", resp.StatusCode))
			return cached.body, nil
		}
		return nil, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}
}

// redactURL keeps scheme and host only; feed paths often carry secrets.
func redactURL(u string) string {
	const suffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + suffix
}
