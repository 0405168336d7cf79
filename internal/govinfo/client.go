package govinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"
)

// DefaultBaseURL is the production GovInfo API endpoint.
const DefaultBaseURL = "https://api.govinfo.gov"

// maxPageSize is the largest listing page the API accepts.
const maxPageSize = 100

// Stop ends iteration early from an EachPackage or EachGranule callback
// without surfacing an error to the caller.
var Stop = errors.New("stop iteration")

// Client talks to the GovInfo API. Construct it explicitly and pass it in;
// the API key travels as a query parameter on every request and is never
// logged. The client paces itself: when RateDelay is set, a fixed pause is
// inserted before every request after the first.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
	// PageSize bounds each listing request. Zero means the API maximum.
	PageSize int
	// RateDelay is the fixed pause between successive API calls.
	RateDelay time.Duration

	paced bool
}

// Package is one Congressional Record package as listed by the collections
// endpoint.
type Package struct {
	PackageID  string `json:"packageId"`
	DateIssued string `json:"dateIssued"`
}

// Granule is one granule as listed under a package.
type Granule struct {
	GranuleID    string `json:"granuleId"`
	Title        string `json:"title"`
	GranuleClass string `json:"granuleClass"`
}

// Summary is the granule summary document, reduced to the fields the run
// loop consumes.
type Summary struct {
	Title    string            `json:"title"`
	Download map[string]string `json:"download"`
}

// EachPackage lists CREC packages issued between startDate and endDate
// (inclusive, YYYY-MM-DD) and invokes fn for each in listing order. The
// listing is paged; iteration ends when a page comes back short. fn may
// return Stop to end iteration early.
func (c *Client) EachPackage(ctx context.Context, startDate, endDate string, fn func(Package) error) error {
	size := c.pageSize()
	for offset := 0; ; offset += size {
		params := url.Values{}
		params.Set("startDate", startDate)
		params.Set("endDate", endDate)
		params.Set("pageSize", strconv.Itoa(size))
		params.Set("offset", strconv.Itoa(offset))

		var page struct {
			Packages []Package `json:"packages"`
		}
		if err := c.getJSON(ctx, "/collections/CREC", params, &page); err != nil {
			return fmt.Errorf("list packages: %w", err)
		}
		for _, p := range page.Packages {
			if err := fn(p); err != nil {
				if errors.Is(err, Stop) {
					return nil
				}
				return err
			}
		}
		if len(page.Packages) < size {
			return nil
		}
	}
}

// EachGranule lists the granules of one package and invokes fn for each in
// listing order, with the same paging and Stop semantics as EachPackage.
func (c *Client) EachGranule(ctx context.Context, packageID string, fn func(Granule) error) error {
	size := c.pageSize()
	path := fmt.Sprintf("/packages/%s/granules", url.PathEscape(packageID))
	for offset := 0; ; offset += size {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(size))
		params.Set("offset", strconv.Itoa(offset))

		var page struct {
			Granules []Granule `json:"granules"`
		}
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return fmt.Errorf("list granules of %s: %w", packageID, err)
		}
		for _, g := range page.Granules {
			if err := fn(g); err != nil {
				if errors.Is(err, Stop) {
					return nil
				}
				return err
			}
		}
		if len(page.Granules) < size {
			return nil
		}
	}
}

// GranuleSummary fetches the summary document for one granule.
func (c *Client) GranuleSummary(ctx context.Context, packageID, granuleID string) (Summary, error) {
	path := fmt.Sprintf("/packages/%s/granules/%s/summary",
		url.PathEscape(packageID), url.PathEscape(granuleID))
	var sum Summary
	if err := c.getJSON(ctx, path, nil, &sum); err != nil {
		return Summary{}, fmt.Errorf("granule summary %s: %w", granuleID, err)
	}
	return sum, nil
}

// DocumentText fetches the raw markup of one granule. The summary's download
// links are tried in order of structural richness: xml, then txt, then htm.
// A granule without any download link yields empty text and no error.
func (c *Client) DocumentText(ctx context.Context, packageID, granuleID string) (string, Summary, error) {
	sum, err := c.GranuleSummary(ctx, packageID, granuleID)
	if err != nil {
		return "", Summary{}, err
	}
	link := pickDownloadLink(sum.Download)
	if link == "" {
		return "", sum, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", sum, fmt.Errorf("download link of %s: %w", granuleID, err)
	}
	q := u.Query()
	q.Set("api_key", c.APIKey)
	u.RawQuery = q.Encode()

	body, contentType, err := c.get(ctx, u.String())
	if err != nil {
		return "", sum, fmt.Errorf("download %s: %w", granuleID, err)
	}
	text, err := decodeCharset(body, contentType)
	if err != nil {
		return "", sum, fmt.Errorf("decode %s: %w", granuleID, err)
	}
	return text, sum, nil
}

// decodeCharset converts a downloaded document to UTF-8 based on the
// Content-Type charset or in-document hints. Documents already in UTF-8 pass
// through unchanged.
func decodeCharset(body []byte, contentType string) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func pickDownloadLink(download map[string]string) string {
	for _, key := range []string{"xmlLink", "txtLink", "htmLink", "htmlLink"} {
		if link := download[key]; link != "" {
			return link
		}
	}
	return ""
}

// pageTokenRe matches the Senate/House page token embedded in granule ids,
// e.g. "PgH123" or "PgS45-2".
var pageTokenRe = regexp.MustCompile(`(Pg[SH]\d+(?:-\d+)?)`)

// PageFromGranuleID extracts the record page token from a granule id, or
// returns the empty string when the id carries none.
func PageFromGranuleID(granuleID string) string {
	return pageTokenRe.FindString(granuleID)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	u, err := url.Parse(c.baseURL())
	if err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if params == nil {
		params = url.Values{}
	}
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}
	u.RawQuery = params.Encode()

	body, _, err := c.get(ctx, u.String())
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// get issues one paced GET and retries transient failures, the statuses the
// API uses for throttling and upstream hiccups, with capped exponential
// backoff. Any other non-2xx status is permanent.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := c.pace(ctx); err != nil {
		return nil, "", err
	}

	var body []byte
	var contentType string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("new request: %w", err))
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if isTransientStatus(resp.StatusCode) {
			return fmt.Errorf("transient status: %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("unexpected status: %d", resp.StatusCode))
		}
		contentType = resp.Header.Get("Content-Type")
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 45 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// pace inserts the fixed inter-request delay. The first request is not
// delayed. The client is used sequentially, so no locking is needed.
func (c *Client) pace(ctx context.Context) error {
	if c.RateDelay <= 0 || !c.paced {
		c.paced = true
		return nil
	}
	t := time.NewTimer(c.RateDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) pageSize() int {
	if c.PageSize > 0 && c.PageSize <= maxPageSize {
		return c.PageSize
	}
	return maxPageSize
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
