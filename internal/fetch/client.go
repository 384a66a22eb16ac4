// Package fetch implements the paginated client for the upstream
// judicial-communications API. It isolates the network concerns: bounded
// timeouts, retry with exponential backoff for transient failures, rate
// limiting between page requests, and tolerance for malformed records.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/legallex/djenwatch/internal/config"
	"github.com/legallex/djenwatch/internal/model"
)

// TransientError is a retryable failure: a timeout, a 5xx response, or a
// rate-limit response. Retries exhausting the budget degrade the page to a
// fetch warning; the run continues with partial data.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient upstream error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("transient upstream error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError is a non-retryable failure (a 4xx other than rate-limit). It
// aborts the fetch for the whole date range.
type FatalError struct {
	StatusCode int
	Err        error
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream rejected request: status %d", e.StatusCode)
	}
	return fmt.Sprintf("fatal fetch error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// PageError records one page given up after exhausting retries.
type PageError struct {
	Page int    `json:"page"`
	Err  string `json:"error"`
}

// Outcome is the result of fetching one date range.
type Outcome struct {
	Publications []model.Publication
	Pages        int         // pages successfully fetched
	Skipped      int         // malformed records skipped inside valid pages
	PageErrors   []PageError // pages lost to exhausted retries
	Warnings     []string    // transient failures that were retried
}

// fetchSleepFunc is the backoff sleep, overridable in tests.
var fetchSleepFunc = time.Sleep

const backoffBase = 500 * time.Millisecond

// maxConsecutiveLostPages bounds a persistent upstream outage: losing this
// many pages in a row aborts the range instead of paging forever.
const maxConsecutiveLostPages = 3

// Client pages through the upstream API sequentially, pacing requests with a
// rate limiter so the upstream's limits are respected.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	itemsPerPage int
	maxPages     int
	maxRetries   int
	limiter      *rate.Limiter
	logger       *log.Logger
}

// NewClient creates a client from the API configuration.
func NewClient(cfg config.APIConfig, logger *log.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		userAgent:    cfg.UserAgent,
		itemsPerPage: cfg.ItemsPerPage,
		maxPages:     cfg.MaxPages,
		maxRetries:   retries,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		logger:       logger,
	}
}

// apiResponse is the upstream page envelope. Unknown fields are ignored and
// records are decoded individually so one malformed record never fails the
// whole page.
type apiResponse struct {
	Items []json.RawMessage `json:"items"`
}

// FetchRange retrieves every page for the inclusive date range. A fatal
// upstream error aborts the range and is returned alongside whatever pages
// were already fetched; transient failures that exhaust their retry budget
// only cost their own page, unless too many pages are lost back to back, in
// which case the range is cut short.
func (c *Client) FetchRange(ctx context.Context, from, to model.Date) (*Outcome, error) {
	out := &Outcome{}
	consecutiveLost := 0

	for page := 1; ; page++ {
		if c.maxPages > 0 && page > c.maxPages {
			out.Warnings = append(out.Warnings, fmt.Sprintf("page limit %d reached, results may be incomplete", c.maxPages))
			break
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("rate limiter: %w", err)
		}

		items, err := c.fetchPageWithRetry(ctx, from, to, page, out)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				// Pages are index-based, so a lost page does not break the
				// continuation; record it and move on with partial data.
				out.PageErrors = append(out.PageErrors, PageError{Page: page, Err: err.Error()})
				c.logger.Warn("page lost after retries", "page", page, "err", err)
				consecutiveLost++
				if consecutiveLost >= maxConsecutiveLostPages {
					out.Warnings = append(out.Warnings, fmt.Sprintf("aborting after %d consecutive lost pages", consecutiveLost))
					break
				}
				continue
			}
			return out, err
		}

		consecutiveLost = 0

		if len(items) == 0 {
			break
		}

		for _, raw := range items {
			var pub model.Publication
			if err := json.Unmarshal(raw, &pub); err != nil {
				out.Skipped++
				c.logger.Warn("skipping malformed record", "page", page, "err", err)
				continue
			}
			out.Publications = append(out.Publications, pub)
		}
		out.Pages++
	}

	return out, nil
}

// fetchPageWithRetry fetches one page, retrying transient failures with
// exponential backoff up to the retry budget.
func (c *Client) fetchPageWithRetry(ctx context.Context, from, to model.Date, page int, out *Outcome) ([]json.RawMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		items, err := c.fetchPage(ctx, from, to, page)
		if err == nil {
			return items, nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxRetries {
			out.Warnings = append(out.Warnings, fmt.Sprintf("page %d attempt %d: %v", page, attempt, err))
			backoff := backoffBase << (attempt - 1)
			c.logger.Debug("retrying page", "page", page, "attempt", attempt, "backoff", backoff)
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

// fetchPage issues a single page request and classifies failures.
func (c *Client) fetchPage(ctx context.Context, from, to model.Date, page int) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("create request: %w", err)}
	}

	q := url.Values{}
	q.Set("dataDisponibilizacaoInicio", from.String())
	q.Set("dataDisponibilizacaoFim", to.String())
	q.Set("itensPorPagina", strconv.Itoa(c.itemsPerPage))
	q.Set("pagina", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &FatalError{Err: ctx.Err()}
		}
		// Network errors and client timeouts are transient.
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &TransientError{StatusCode: resp.StatusCode}
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, &FatalError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("decode page %d: %w", page, err)}
	}
	return parsed.Items, nil
}
