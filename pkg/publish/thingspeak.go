// Package publish uploads station readings to a ThingSpeak-compatible
// channel.
package publish

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

	"github.com/itohio/gobonsai/pkg/config"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrRejected is returned when the server answers with entry id 0.
	ErrRejected = errors.New("update rejected")
	// ErrInvalidField is returned for field numbers outside 1-8.
	ErrInvalidField = errors.New("invalid field")
	// ErrNoFields is returned when an update carries nothing.
	ErrNoFields = errors.New("no fields to publish")
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bonsai",
		Name:      "publisher_updates_total",
		Help:      "Number of channel update attempts by result.",
	}, []string{"result"})
	updateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bonsai",
		Name:      "publisher_update_duration_seconds",
		Help:      "Time spent on a single channel update request.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

// MaxFields is the number of fields of a ThingSpeak channel.
const MaxFields = 8

// Publisher writes one value to a channel field and returns the entry id.
type Publisher interface {
	Publish(ctx context.Context, field int, value float64) (int, error)
}

// BatchPublisher writes several fields in one update.
type BatchPublisher interface {
	Publisher
	PublishFields(ctx context.Context, fields map[int]float64) (int, error)
}

// ThingSpeak publishes over the channel update API:
// GET {url}/update?api_key=KEY&field1=V1...
type ThingSpeak struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryMin   time.Duration
	retryMax   time.Duration
}

var _ BatchPublisher = (*ThingSpeak)(nil)

// New creates a publisher from configuration. A nil client uses a client with
// cfg.Timeout.
func New(cfg config.PublisherConfig, client *http.Client) (*ThingSpeak, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("publisher url is empty")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid publisher url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &ThingSpeak{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryMin:   cfg.RetryMin,
		retryMax:   cfg.RetryMax,
	}, nil
}

// Publish writes a single field.
func (t *ThingSpeak) Publish(ctx context.Context, field int, value float64) (int, error) {
	return t.PublishFields(ctx, map[int]float64{field: value})
}

// PublishFields writes all fields in one update. It waits for the minimum
// interval between updates and retries transport and server errors with
// exponential backoff.
func (t *ThingSpeak) PublishFields(ctx context.Context, fields map[int]float64) (int, error) {
	if len(fields) == 0 {
		return 0, ErrNoFields
	}
	for f := range fields {
		if f < 1 || f > MaxFields {
			return 0, fmt.Errorf("%w: %d", ErrInvalidField, f)
		}
	}

	u := t.updateURL(fields)

	b := &backoff.Backoff{
		Min:    t.retryMin,
		Max:    t.retryMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		pre := time.Now()
		id, retry, err := t.update(ctx, u)
		updateDuration.Observe(time.Since(pre).Seconds())
		updatesTotal.WithLabelValues(result(err)).Inc()
		if err == nil {
			log.WithFields(log.Fields{
				"entry":  id,
				"fields": len(fields),
				"took":   time.Since(pre),
			}).Debug("published update")
			return id, nil
		}
		if !retry || attempt >= t.maxRetries {
			return 0, err
		}

		dur := b.Duration()
		log.WithError(err).WithField("retry_in", dur).Warn("publish failed")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(dur):
		}
	}
}

// update performs one request. retry reports whether the failure is transient.
func (t *ThingSpeak) update(ctx context.Context, u string) (id int, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, ctx.Err() == nil, fmt.Errorf("update request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return 0, true, fmt.Errorf("update failed: http %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, fmt.Errorf("update failed: http %d", resp.StatusCode)
	}

	id, err = strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, false, fmt.Errorf("unexpected response %q: %w", body, err)
	}
	if id == 0 {
		return 0, false, ErrRejected
	}
	return id, false, nil
}

func (t *ThingSpeak) updateURL(fields map[int]float64) string {
	q := url.Values{}
	q.Set("api_key", t.apiKey)
	for f := range fields {
		q.Set("field"+strconv.Itoa(f), strconv.FormatFloat(fields[f], 'f', -1, 64))
	}
	return t.baseURL + "/update?" + q.Encode()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRejected):
		return "rejected"
	}
	return "error"
}
