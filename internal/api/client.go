package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"go-tarot-gen/internal/models"
)

// Custom Error Types
var (
	ErrRateLimited      = errors.New("API rate limit exceeded")
	ErrUnauthorized     = errors.New("API request unauthorized (check REPLICATE_API_TOKEN)")
	ErrBadRequest       = errors.New("API rejected the request")
	ErrServerError      = errors.New("API server error")
	ErrPredictionFailed = errors.New("prediction failed")
	ErrNoOutput         = errors.New("prediction returned no output")
)

const ReplicateApiBaseUrl = "https://api.replicate.com/v1"

// Options tunes request pacing, retries and polling.
type Options struct {
	BaseURL         string
	MaxRetries      int           // total attempts per prediction
	InitialInterval time.Duration // first backoff interval
	PollInterval    time.Duration
	RateLimitWait   time.Duration // minimum wait after a 429
	RequestDelay    time.Duration // minimum spacing between prediction requests
}

// Client struct for interacting with the Replicate API
type Client struct {
	ApiToken   string
	HttpClient *http.Client
	opts       Options
	limiter    *rate.Limiter
}

// NewClient creates a new API client. Zero options take the package defaults.
func NewClient(apiToken string, httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 300 * time.Second}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = ReplicateApiBaseUrl
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 2 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RateLimitWait < 0 {
		opts.RateLimitWait = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
	}
	log.Debugf("NewClient: base=%s retries=%d poll=%s delay=%s", opts.BaseURL, opts.MaxRetries, opts.PollInterval, opts.RequestDelay)

	return &Client{
		ApiToken:   apiToken,
		HttpClient: httpClient,
		opts:       opts,
		limiter:    limiter,
	}
}

// rateLimitFloor raises the next backoff interval after a rate limit response.
type rateLimitFloor struct {
	backoff.BackOff
	floor time.Duration
}

func (b *rateLimitFloor) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.floor > next {
		next = b.floor
	}
	b.floor = 0
	return next
}

// Predict creates a prediction and polls it to a terminal state.
// Transient failures (429, 5xx, network) are retried; everything else is returned at once.
func (c *Client) Predict(ctx context.Context, modelID string, input map[string]any) (*models.Prediction, error) {
	model := ResolveModel(modelID)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.InitialInterval
	expo.MaxElapsedTime = 0
	policy := &rateLimitFloor{BackOff: expo}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.MaxRetries-1)), ctx)

	attempts := 0
	var result *models.Prediction
	operation := func() error {
		attempts++
		pred, err := c.predictOnce(ctx, model, input)
		if err == nil {
			result = pred
			return nil
		}
		var rl *rateLimitError
		switch {
		case errors.As(err, &rl):
			policy.floor = max(c.opts.RateLimitWait, rl.retryAfter)
			return err
		case errors.Is(err, ErrServerError), isNetworkError(err) && ctx.Err() == nil:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("model", model.ID).Warnf("Prediction attempt %d/%d failed, retrying in %s", attempts, c.opts.MaxRetries, wait.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}
		if attempts >= c.opts.MaxRetries && isTransient(err) {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) predictOnce(ctx context.Context, model Model, input map[string]any) (*models.Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := models.PredictionRequest{Input: input}
	endpoint := fmt.Sprintf("%s/models/%s/predictions", c.opts.BaseURL, model.Name())
	if v := model.Version(); v != "" {
		body.Version = v
		endpoint = c.opts.BaseURL + "/predictions"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding prediction request: %w", err)
	}

	pred, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"id": pred.ID, "status": pred.Status}).Debug("Prediction created")

	for !pred.Terminal() {
		if pred.URLs.Get == "" {
			return nil, fmt.Errorf("%w: prediction %s has no polling URL", ErrBadRequest, pred.ID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
		next, err := c.do(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, err
		}
		pred = next
		log.WithFields(log.Fields{"id": pred.ID, "status": pred.Status}).Debug("Polled prediction")
	}

	switch pred.Status {
	case models.PredictionSucceeded:
		urls, err := pred.OutputURLs()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoOutput, err)
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("%w (prediction %s)", ErrNoOutput, pred.ID)
		}
		return pred, nil
	default:
		msg := pred.ErrorMessage()
		if msg == "" {
			msg = pred.Status
		}
		return nil, fmt.Errorf("%w: prediction %s: %s", ErrPredictionFailed, pred.ID, msg)
	}
}

// do sends one request and decodes the prediction in the response.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) (*models.Prediction, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.ApiToken)
	if method == http.MethodPost {
		req.Header.Set("Prefer", "wait")
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, &networkError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &networkError{err: fmt.Errorf("error reading response body: %w", err)}
	}

	if err := statusError(resp, body); err != nil {
		return nil, err
	}

	var pred models.Prediction
	if err := json.Unmarshal(body, &pred); err != nil {
		log.Debugf("Response body causing unmarshal error: %s", string(body))
		return nil, fmt.Errorf("error unmarshalling response JSON: %w", err)
	}
	return &pred, nil
}

// statusError maps an HTTP status to the error taxonomy.
func statusError(resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}
	detail := apiDetail(body)
	switch {
	case code == http.StatusTooManyRequests:
		return &rateLimitError{retryAfter: retryAfter(resp.Header.Get("Retry-After")), detail: detail}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w (status code %d): %s", ErrUnauthorized, code, detail)
	case code == http.StatusRequestTimeout, code >= 500:
		return fmt.Errorf("%w (status code %d): %s", ErrServerError, code, detail)
	default:
		return fmt.Errorf("%w (status code %d): %s", ErrBadRequest, code, detail)
	}
}

// apiDetail extracts the "detail" field Replicate puts in error bodies.
func apiDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Title != "" {
			return e.Title
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type rateLimitError struct {
	retryAfter time.Duration
	detail     string
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%s (status code 429): %s", ErrRateLimited, e.detail)
}

func (e *rateLimitError) Unwrap() error { return ErrRateLimited }

type networkError struct{ err error }

func (e *networkError) Error() string { return "http request failed: " + e.err.Error() }

func (e *networkError) Unwrap() error { return e.err }

func isNetworkError(err error) bool {
	var ne *networkError
	return errors.As(err, &ne)
}

func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) || isNetworkError(err)
}
