package scrape

import (
	"context"
	"fmt"
	"net/http"

	"camperwatch/internal/httputil"
)

func init() {
	Register("direct", func(deps Deps) Strategy {
		return &DirectFetch{client: deps.Client}
	})
}

// DirectFetch performs a plain HTTP GET of the competitor's search URL.
// Cheapest strategy; first choice for sites that render prices without JS.
type DirectFetch struct {
	client *http.Client
}

func (d *DirectFetch) Name() string { return "direct" }

func (d *DirectFetch) Execute(ctx context.Context, req Request) (*Outcome, error) {
	target := req.SearchURL()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range httputil.BrowserHeaders() {
		httpReq.Header[k] = v
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return &Outcome{FinalURL: target, Classification: ClassBlockedByChallenge}, nil
	}
	if resp.StatusCode >= 400 {
		return &Outcome{FinalURL: target, Classification: ClassNavigationError}, nil
	}

	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	html := string(body)
	switch {
	case isChallenge(html):
		return &Outcome{HTML: html, FinalURL: target, Classification: ClassBlockedByChallenge}, nil
	case len(html) == 0:
		return &Outcome{FinalURL: target, Classification: ClassEmpty}, nil
	}

	return &Outcome{HTML: html, FinalURL: target, Classification: ClassOK}, nil
}
