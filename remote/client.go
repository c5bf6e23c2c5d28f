// Package remote is the session's HTTP client for the record service.
//
// Every call goes out at most once; retrying is up to the caller. After repeated
// transport failures a circuit breaker stops calls going out for a while. The exported
// operations follow one failure policy (see fallback): transport, HTTP status and
// decode failures are logged and collapse to the operation's "no data" value, except
// FetchReviews and Identify, which report the error so callers can tell an empty result
// from a failed one.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"attraction-map/metrics"
	"attraction-map/models"
	errs "attraction-map/utils/errors"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	opExists       = "exists"
	opCreate       = "create"
	opListAll      = "list_all"
	opFetchReviews = "fetch_reviews"
	opSubmitReview = "submit_review"
	opIdentify     = "identify"
)

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// tripAfter consecutive transport failures open the breaker for breakerTimeout.
const (
	tripAfter      = 5
	breakerTimeout = 30 * time.Second
)

type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
	logger   *zap.Logger
}

// NewClient returns a client for the service at baseURL. A nil httpClient gets a
// client with a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		baseURL:  baseURL,
		http:     httpClient,
		validate: validator.New(),
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "record-service",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		// Only an unreachable service counts; a 404 or a bad body is an answer.
		IsSuccessful: func(err error) bool {
			return errs.KindOf(err) != errs.KindTransport
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return c
}

// Exists checks GET /records/{id}. Anything other than a 200 reads as missing.
func (c *Client) Exists(ctx context.Context, id string) bool {
	if id == "" {
		return fallback(c, opExists, false, errs.Validation(opExists, fmt.Errorf("empty record id")))
	}
	status, err := c.do(ctx, opExists, http.MethodGet, "/records/"+url.PathEscape(id), nil, nil)
	if err != nil {
		// An unreachable service is reported as missing, so the caller will insert.
		return fallback(c, opExists, false, err)
	}
	if status != http.StatusOK {
		return fallback(c, opExists, false, errs.HTTPStatus(opExists, status))
	}
	return true
}

// Create inserts rec with POST /records. It is not idempotent; call Exists first.
func (c *Client) Create(ctx context.Context, rec models.Record) bool {
	if err := c.validate.Struct(rec); err != nil {
		return fallback(c, opCreate, false, errs.Validation(opCreate, err))
	}
	if _, err := c.do(ctx, opCreate, http.MethodPost, "/records", rec, nil); err != nil {
		return fallback(c, opCreate, false, err)
	}
	return true
}

// ListAll fetches every record. Entries that do not decode or validate are skipped.
func (c *Client) ListAll(ctx context.Context) []models.Record {
	var raw []json.RawMessage
	if _, err := c.do(ctx, opListAll, http.MethodGet, "/records", nil, &raw); err != nil {
		return fallback[[]models.Record](c, opListAll, nil, err)
	}

	records := make([]models.Record, 0, len(raw))
	for i, entry := range raw {
		var rec models.Record
		if err := json.Unmarshal(entry, &rec); err != nil {
			c.logger.Warn("dropping malformed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := c.validate.Struct(rec); err != nil {
			c.logger.Warn("dropping invalid record", zap.Int("index", i), zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// FetchReviews returns the full review set for id. An empty slice means no reviews;
// failures come back as a *errors.SyncError.
func (c *Client) FetchReviews(ctx context.Context, id string) ([]models.Review, error) {
	if id == "" {
		return nil, errs.Validation(opFetchReviews, fmt.Errorf("empty record id"))
	}
	var raw []json.RawMessage
	if _, err := c.do(ctx, opFetchReviews, http.MethodGet, "/records/"+url.PathEscape(id)+"/reviews", nil, &raw); err != nil {
		return nil, err
	}

	reviews := make([]models.Review, 0, len(raw))
	for i, entry := range raw {
		var rv models.Review
		if err := json.Unmarshal(entry, &rv); err != nil {
			c.logger.Warn("dropping malformed review", zap.String("record_id", id), zap.Int("index", i), zap.Error(err))
			continue
		}
		if rv.Rating < models.MinRating || rv.Rating > models.MaxRating {
			c.logger.Warn("dropping review with rating out of range",
				zap.String("record_id", id), zap.String("review_id", rv.ReviewID), zap.Int("rating", rv.Rating))
			continue
		}
		rv.RecordID = id
		reviews = append(reviews, rv)
	}
	return reviews, nil
}

// SubmitReview posts a review and returns the stored copy, or nil on any failure.
// The rating is checked before anything is sent.
func (c *Client) SubmitReview(ctx context.Context, id string, input models.ReviewInput) *models.Review {
	if err := ValidateReview(c.validate, id, input); err != nil {
		return fallback[*models.Review](c, opSubmitReview, nil, err)
	}

	var rv models.Review
	if _, err := c.do(ctx, opSubmitReview, http.MethodPost, "/records/"+url.PathEscape(id)+"/reviews", input, &rv); err != nil {
		return fallback[*models.Review](c, opSubmitReview, nil, err)
	}
	if rv.ReviewID == "" {
		return fallback[*models.Review](c, opSubmitReview, nil, errs.Decode(opSubmitReview, fmt.Errorf("response has no review_id")))
	}
	rv.RecordID = id
	return &rv
}

// Identify asks the service's feature layer for records within radiusMeters of a point.
func (c *Client) Identify(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.Record, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusMeters, 'f', -1, 64))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var records []models.Record
	if _, err := c.do(ctx, opIdentify, http.MethodGet, "/features/identify?"+q.Encode(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ValidateReview fails fast on a bad record id or a rating outside 1..5.
func ValidateReview(v *validator.Validate, id string, input models.ReviewInput) error {
	if id == "" {
		return errs.Validation(opSubmitReview, fmt.Errorf("empty record id"))
	}
	if err := v.Struct(input); err != nil {
		return errs.Validation(opSubmitReview, err)
	}
	return nil
}

// do sends one request through the breaker. A non-nil out is decoded from a 2xx body.
// While the breaker is open nothing is sent and the call fails as a transport error.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (int, error) {
	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, op, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = errs.Transport(op, err)
	}
	status, _ := res.(int)
	metrics.RemoteDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))

	outcome := "ok"
	if err != nil {
		outcome = errs.KindOf(err).String()
	}
	metrics.RemoteRequestsTotal.WithLabelValues(op, outcome).Inc()
	c.logger.Debug("record service call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("outcome", outcome),
		zap.Duration("took", time.Since(start)))
	return status, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errs.Validation(op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, errs.Transport(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errs.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return resp.StatusCode, errs.HTTPStatus(op, resp.StatusCode)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return resp.StatusCode, errs.Decode(op, err)
	}
	return resp.StatusCode, nil
}
