package search

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const (
	apiURL          = "https://www.googleapis.com"
	searchPath      = "/customsearch/v1"
	userAgent       = "spigell/sourcing-agent"
	contentType     = "application/json"
	contentEncoding = "gzip"
)

// ErrUnauthorized marks a search API credentials problem. It is a configuration error.
var ErrUnauthorized = errors.New("search api rejected credentials")

// StatusError is a non-200 answer of the search API.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bad status: %s", e.Status)
	}
	return fmt.Sprintf("bad status: %s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "api key"):
		return ErrUnauthorized
	default:
		return nil
	}
}

// Client queries the Google Custom Search JSON API.
type Client struct {
	apiKey     string
	engineID   string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func NewClient(logger *zap.Logger, apiKey, engineID string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:   apiKey,
		engineID: engineID,
		APIURL:   apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// PageParams are the query parameters of a single page request.
type PageParams struct {
	// cseparam is custom tag for reflect. Please see buildParams.
	Key      string `cseparam:"key"`
	EngineID string `cseparam:"cx"`
	Query    string `cseparam:"q"`
	Start    int    `cseparam:"start"`
	Num      int    `cseparam:"num"`
}

type pageResponse struct {
	Items []map[string]any `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Page fetches one page of results starting at the 1-based offset start.
func (c *Client) Page(ctx context.Context, query string, start int) ([]*Hit, error) {
	params := &PageParams{
		Key:      c.apiKey,
		EngineID: c.engineID,
		Query:    query,
		Start:    start,
		Num:      PageSize,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+searchPath, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	req.URL.RawQuery = buildParams(params).Encode()

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	response, err := c.parsePageResponse(resp)
	if err != nil {
		return nil, err
	}

	var hits []*Hit
	cfg := &mapstructure.DecoderConfig{
		Result:           &hits,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(response.Items); err != nil {
		return nil, fmt.Errorf("decode search items: %w", err)
	}

	c.logger.Debug("got response from search api", zap.Int("start", start), zap.Int("items", len(hits)))

	return hits, nil
}

func (c *Client) parsePageResponse(resp *http.Response) (*pageResponse, error) {
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var response pageResponse
	decodeErr := json.Unmarshal(data, &response)

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if decodeErr == nil && response.Error != nil {
			statusErr.Message = response.Error.Message
		}
		return nil, statusErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("parse search response: %w", decodeErr)
	}

	return &response, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", redactKey(req.URL)))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func buildParams(params *PageParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("cseparam")
		if key == "" {
			continue
		}

		raw := value.FieldByIndex(field.Index)
		switch raw.Kind() {
		case reflect.Int:
			if raw.Int() != 0 {
				q.Set(key, strconv.FormatInt(raw.Int(), 10))
			}
		default:
			if s := fmt.Sprintf("%v", raw.Interface()); s != "" {
				q.Set(key, s)
			}
		}
	}

	return q
}

func redactKey(u *url.URL) string {
	copied := *u
	q := copied.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
	}
	copied.RawQuery = q.Encode()
	return copied.String()
}
