package xclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	config "github.com/maheshrc27/postpulse/configs"
	"github.com/maheshrc27/postpulse/internal/apperr"
	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/maheshrc27/postpulse/internal/transfer"
	"golang.org/x/time/rate"
)

// Client is the subset of the X API the scheduler uses.
type Client interface {
	CreateTweet(ctx context.Context, accessToken string, req transfer.CreateTweetRequest) (string, error)
	UploadMedia(ctx context.Context, accessToken string, data []byte, mimeType string) (string, error)
	GetTweetMetrics(ctx context.Context, accessToken, tweetID string) (*transfer.TweetMetrics, error)
}

// APIError is a non-2xx answer from X. It unwraps to the apperr kind that
// matches the status so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return apperr.ErrAuthorization
	case e.StatusCode == http.StatusNotFound:
		return apperr.ErrNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests:
		return apperr.ErrValidation
	default:
		return apperr.ErrDispatch
	}
}

// Retryable reports whether repeating the same request later may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type HTTPClient struct {
	baseURL     string
	uploadURL   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPClient(cfg config.X) *HTTPClient {
	rps, burst := cfg.RPS, cfg.Burst
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:     cfg.APIBaseURL,
		uploadURL:   cfg.UploadURL,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		maxAttempts: 3,
		baseBackoff: 500 * time.Millisecond,
	}
}

func auth(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
}

// CreateTweet publishes a tweet and returns its id. It is never retried here:
// a timed-out POST may still have been accepted, so retries belong to the queue.
func (c *HTTPClient) CreateTweet(ctx context.Context, accessToken string, body transfer.CreateTweetRequest) (string, error) {
	if accessToken == "" {
		return "", apperr.Authorization("missing access token")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	auth(req, accessToken)
	req.Header.Set("Content-Type", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveXAPI("tweets.create", start)
	if err != nil {
		return "", apperr.Dispatch("create tweet: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", readAPIError(resp, "tweets.create")
	}

	var out transfer.CreateTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create tweet response: %w", err)
	}
	if out.Data.ID == "" {
		return "", apperr.Dispatch("create tweet: empty id in response")
	}
	return out.Data.ID, nil
}

func (c *HTTPClient) UploadMedia(ctx context.Context, accessToken string, data []byte, mimeType string) (string, error) {
	if accessToken == "" {
		return "", apperr.Authorization("missing access token")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("media_category", "tweet_image"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("media", "upload")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return "", err
	}
	auth(req, accessToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Media-Type", mimeType)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveXAPI("media.upload", start)
	if err != nil {
		return "", apperr.Dispatch("upload media: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", readAPIError(resp, "media.upload")
	}

	var out transfer.MediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode media upload response: %w", err)
	}
	if out.MediaIDString != "" {
		return out.MediaIDString, nil
	}
	if out.MediaID != 0 {
		return strconv.FormatInt(out.MediaID, 10), nil
	}
	return "", apperr.Dispatch("upload media: empty media id")
}

// GetTweetMetrics looks up every metric group the token is allowed to see.
// A tweet deleted on the network surfaces as apperr.ErrNotFound.
func (c *HTTPClient) GetTweetMetrics(ctx context.Context, accessToken, tweetID string) (*transfer.TweetMetrics, error) {
	if accessToken == "" {
		return nil, apperr.Authorization("missing access token")
	}
	if tweetID == "" {
		return nil, apperr.Validation("empty tweet id")
	}
	u := fmt.Sprintf("%s/tweets/%s?tweet.fields=public_metrics,non_public_metrics,organic_metrics", c.baseURL, url.PathEscape(tweetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	auth(req, accessToken)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.doWithRetry(ctx, req)
	metrics.ObserveXAPI("tweets.lookup", start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, readAPIError(resp, "tweets.lookup")
	}

	var out transfer.TweetLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tweet lookup response: %w", err)
	}
	if out.Data == nil {
		detail := "no data"
		if len(out.Errors) > 0 {
			detail = out.Errors[0].Detail
		}
		return nil, apperr.NotFound("tweet %s: %s", tweetID, detail)
	}
	return out.Data, nil
}

func readAPIError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(body)}
}

// doWithRetry retries idempotent requests on transport errors, 429 and 5xx,
// honouring Retry-After when the server sends one.
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
			if !retryable || attempt == c.maxAttempts {
				return resp, nil
			}
			wait := backoff
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, apperr.Dispatch("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
