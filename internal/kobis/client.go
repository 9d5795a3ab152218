package kobis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"marquee/internal/services"
)

// DefaultBaseURL is the public REST root.
const DefaultBaseURL = "https://www.kobis.or.kr/kobisopenapi/webservice/rest"

// QuotaErrorCode is the fault code the API returns once the daily allowance is spent.
const QuotaErrorCode = "320011"

const (
	pathMovieInfo    = "/movie/searchMovieInfo.json"
	pathMovieList    = "/movie/searchMovieList.json"
	pathWeeklyReport = "/boxoffice/searchWeeklyBoxOfficeList.json"

	maxBodyBytes = 8 << 20
)

// Client provides access to the catalog API.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent = strings.TrimSpace(agent); agent != "" {
			c.userAgent = agent
		}
	}
}

// New creates a client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "kobis", "new", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "marquee/dev",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FaultError is an error payload returned by the API in place of a result.
type FaultError struct {
	Code    string
	Message string
}

func (e *FaultError) Error() string {
	if e.Message == "" {
		return "kobis fault " + e.Code
	}
	return fmt.Sprintf("kobis fault %s: %s", e.Code, e.Message)
}

// Quota reports whether the fault signals daily quota exhaustion.
func (e *FaultError) Quota() bool {
	return e != nil && e.Code == QuotaErrorCode
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	StatusCode int
	Latency    time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kobis returned %d (latency=%v)", e.StatusCode, e.Latency)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type fault struct {
	Message   Text `json:"message"`
	ErrorCode Text `json:"errorCode"`
	LowerCode Text `json:"errorcode"`
}

type faultEnvelope struct {
	FaultInfo   *fault `json:"faultInfo"`
	FaultResult *fault `json:"faultResult"`
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values) ([]byte, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "kobis", operation, "parse url", err)
	}
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, "kobis", operation, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		// url.Error embeds the full request URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		err = fmt.Errorf("execute request (latency=%v): %w", latency, err)
		if IsRetriable(err) {
			return nil, services.Wrap(services.ErrTransient, "kobis", operation, "request failed", err)
		}
		return nil, services.Wrap(services.ErrPermanent, "kobis", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "kobis", operation, "read response", err)
	}
	if f := decodeFault(body); f != nil {
		if f.Quota() {
			return nil, services.Wrap(services.ErrQuotaExhausted, "kobis", operation, "daily quota exhausted", f)
		}
		return nil, services.Wrap(services.ErrPermanent, "kobis", operation, "api fault", f)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Latency: latency}
		if statusErr.Transient() {
			return nil, services.Wrap(services.ErrTransient, "kobis", operation, "upstream unavailable", statusErr)
		}
		return nil, services.Wrap(services.ErrPermanent, "kobis", operation, "request rejected", statusErr)
	}
	return body, nil
}

func decodeFault(body []byte) *FaultError {
	var env faultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	f := env.FaultInfo
	if f == nil {
		f = env.FaultResult
	}
	if f == nil {
		return nil
	}
	code := string(f.ErrorCode)
	if code == "" {
		code = string(f.LowerCode)
	}
	return &FaultError{Code: code, Message: string(f.Message)}
}

func decodeResult(operation string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return services.Wrap(services.ErrPermanent, "kobis", operation, "decode response", err)
	}
	return nil
}

// MovieInfo fetches the detail record for movieCd. The returned object is the
// movieInfoResult envelope, whose movieInfo member holds the title fields.
func (c *Client) MovieInfo(ctx context.Context, movieCd string) (map[string]any, error) {
	movieCd = strings.TrimSpace(movieCd)
	if movieCd == "" {
		return nil, services.Wrap(services.ErrMalformedInput, "kobis", "movie_info", "movie code must not be empty", nil)
	}
	params := url.Values{}
	params.Set("movieCd", movieCd)
	body, err := c.get(ctx, "movie_info", pathMovieInfo, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Result map[string]any `json:"movieInfoResult"`
	}
	if err := decodeResult("movie_info", body, &payload); err != nil {
		return nil, err
	}
	if payload.Result == nil {
		return nil, services.Wrap(services.ErrNotFound, "kobis", "movie_info", "response missing movieInfoResult", nil)
	}
	return payload.Result, nil
}

// WeeklyEntry is one ranked title in a weekly report.
type WeeklyEntry struct {
	Rank    Text  `json:"rank"`
	MovieCd Text  `json:"movieCd"`
	MovieNm Text  `json:"movieNm"`
	OpenDt  Text  `json:"openDt"`
	AudiAcc Count `json:"audiAcc"`
}

// WeeklyReport is the weekly box office ranking for one target date.
type WeeklyReport struct {
	TargetDate   string        `json:"-"`
	BoxofficeTyp string        `json:"boxofficeType"`
	ShowRange    string        `json:"showRange"`
	YearWeekTime string        `json:"yearWeekTime"`
	Entries      []WeeklyEntry `json:"weeklyBoxOfficeList"`
}

// Find returns the entry for movieCd if the title is ranked in the report.
func (r *WeeklyReport) Find(movieCd string) (WeeklyEntry, bool) {
	if r == nil {
		return WeeklyEntry{}, false
	}
	for _, entry := range r.Entries {
		if string(entry.MovieCd) == movieCd {
			return entry, true
		}
	}
	return WeeklyEntry{}, false
}

// WeeklyBoxOffice fetches the full-week (weekGb=0) ranking containing targetDate.
func (c *Client) WeeklyBoxOffice(ctx context.Context, targetDate time.Time) (*WeeklyReport, error) {
	target := targetDate.Format("20060102")
	params := url.Values{}
	params.Set("targetDt", target)
	params.Set("weekGb", "0")
	body, err := c.get(ctx, "weekly_box_office", pathWeeklyReport, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Result *WeeklyReport `json:"boxOfficeResult"`
	}
	if err := decodeResult("weekly_box_office", body, &payload); err != nil {
		return nil, err
	}
	if payload.Result == nil {
		return &WeeklyReport{TargetDate: target}, nil
	}
	payload.Result.TargetDate = target
	return payload.Result, nil
}

// MovieListPage is one page of the title list.
type MovieListPage struct {
	TotalCount Count            `json:"totCnt"`
	Movies     []map[string]any `json:"movieList"`
}

// MovieList fetches one page of titles whose opening date falls in year.
func (c *Client) MovieList(ctx context.Context, year, page, perPage int) (*MovieListPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 100
	}
	params := url.Values{}
	params.Set("openStartDt", strconv.Itoa(year))
	params.Set("openEndDt", strconv.Itoa(year))
	params.Set("itemPerPage", strconv.Itoa(perPage))
	params.Set("curPage", strconv.Itoa(page))
	body, err := c.get(ctx, "movie_list", pathMovieList, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Result *MovieListPage `json:"movieListResult"`
	}
	if err := decodeResult("movie_list", body, &payload); err != nil {
		return nil, err
	}
	if payload.Result == nil {
		return nil, services.Wrap(services.ErrPermanent, "kobis", "movie_list", "response missing movieListResult", nil)
	}
	return payload.Result, nil
}

// IsQuotaFault reports whether err carries the quota fault.
func IsQuotaFault(err error) bool {
	var f *FaultError
	return errors.As(err, &f) && f.Quota()
}
