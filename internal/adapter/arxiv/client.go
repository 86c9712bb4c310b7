// Package arxiv fetches paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"papersearch/internal/domain"
	"papersearch/internal/port"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	PageSize  int
	PageDelay time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

type Client struct {
	baseURL   string
	pageSize  int
	pageDelay time.Duration
	client    *http.Client
	logger    *slog.Logger
}

var _ port.PaperFetcher = (*Client)(nil)

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://export.arxiv.org/api/query"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:   opts.BaseURL,
		pageSize:  opts.PageSize,
		pageDelay: opts.PageDelay,
		client:    &http.Client{Timeout: opts.Timeout},
		logger:    opts.Logger.With("component", "arxiv"),
	}
}

type feed struct {
	TotalResults int     `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []entry `xml:"http://www.w3.org/2005/Atom entry"`
}

type entry struct {
	ID         string     `xml:"http://www.w3.org/2005/Atom id"`
	Title      string     `xml:"http://www.w3.org/2005/Atom title"`
	Summary    string     `xml:"http://www.w3.org/2005/Atom summary"`
	Published  string     `xml:"http://www.w3.org/2005/Atom published"`
	Authors    []author   `xml:"http://www.w3.org/2005/Atom author"`
	Categories []category `xml:"http://www.w3.org/2005/Atom category"`
}

type author struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// SearchQuery builds the "cat:a OR cat:b" query for categories.
func SearchQuery(categories []string) string {
	parts := make([]string, len(categories))
	for i, c := range categories {
		parts[i] = "cat:" + c
	}
	return strings.Join(parts, " OR ")
}

// Fetch returns up to maxResults of the most recently submitted papers in
// categories, newest first.
func (c *Client) Fetch(ctx context.Context, categories []string, maxResults int) ([]domain.Paper, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories given")
	}
	if maxResults <= 0 {
		return []domain.Paper{}, nil
	}

	query := SearchQuery(categories)
	papers := make([]domain.Paper, 0, maxResults)

	for start := 0; start < maxResults; start += c.pageSize {
		if start > 0 && c.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pageDelay):
			}
		}

		n := c.pageSize
		if remaining := maxResults - start; remaining < n {
			n = remaining
		}

		page, total, err := c.fetchPage(ctx, query, start, n)
		if err != nil {
			return nil, err
		}
		papers = append(papers, page...)
		c.logger.Debug("Fetched page", "start", start, "entries", len(page), "total", total)

		if len(page) < n || start+len(page) >= total {
			break
		}
	}

	return papers, nil
}

func (c *Client) fetchPage(ctx context.Context, query string, start, maxResults int) ([]domain.Paper, int, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to parse atom feed: %w", err)
	}

	papers := make([]domain.Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		p, err := e.paper()
		if err != nil {
			return nil, 0, err
		}
		papers = append(papers, p)
	}
	return papers, f.TotalResults, nil
}

func (e entry) paper() (domain.Paper, error) {
	p := domain.Paper{
		ID:         strings.TrimSpace(e.ID),
		Title:      strings.Join(strings.Fields(e.Title), " "),
		Abstract:   strings.TrimSpace(e.Summary),
		Authors:    make([]string, 0, len(e.Authors)),
		Categories: make([]string, 0, len(e.Categories)),
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	if e.Published != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
		if err != nil {
			return domain.Paper{}, fmt.Errorf("entry %s: bad published date %q: %w", p.ID, e.Published, err)
		}
		p.Published = t
	}
	return p, nil
}
