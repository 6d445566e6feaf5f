package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"k8s.io/client-go/util/flowcontrol"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

const DefaultBaseURL = "http://localhost:5204/api/ServiceStatus"

type Config struct {
	BaseURL  string
	Timeout  time.Duration // per attempt
	QPS      float32       // 0 disables rate limiting
	Burst    int
	Attempts uint
	Delay    time.Duration
}

// Repo talks to the ServiceStatus REST API.
type Repo struct {
	base    string
	conf    Config
	client  *http.Client
	limiter flowcontrol.RateLimiter
	logger  logr.Logger
}

func New(conf Config) (*Repo, error) {
	if conf.BaseURL == "" {
		conf.BaseURL = DefaultBaseURL
	}

	u, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", conf.BaseURL)
	}

	if conf.Attempts == 0 {
		conf.Attempts = 1
	}

	limiter := flowcontrol.NewFakeAlwaysRateLimiter()
	if conf.QPS > 0 {
		burst := conf.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = flowcontrol.NewTokenBucketRateLimiter(conf.QPS, burst)
	}

	return &Repo{
		base:    strings.TrimRight(u.String(), "/"),
		conf:    conf,
		client:  &http.Client{Timeout: conf.Timeout},
		limiter: limiter,
		logger:  logr.Discard(),
	}, nil
}

func (r *Repo) WithLogger(logger logr.Logger) *Repo {
	r.logger = logger
	return r
}

func (r *Repo) WithHTTPClient(client *http.Client) *Repo {
	r.client = client
	return r
}

func (r *Repo) ListServices(ctx context.Context) ([]domain.Snapshot, error) {
	var out []domain.Snapshot

	err := r.do(ctx, "list services", http.MethodGet, "", nil, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *Repo) GetService(ctx context.Context, id string) (domain.Snapshot, error) {
	var out domain.Snapshot

	err := r.do(ctx, "get service", http.MethodGet, "/"+url.PathEscape(id), nil, &out)

	return out, err
}

func (r *Repo) AddService(ctx context.Context, d domain.ServiceDraft) (domain.Snapshot, error) {
	var out domain.Snapshot

	err := r.do(ctx, "add service", http.MethodPost, "", d, &out)

	return out, err
}

func (r *Repo) DeleteService(ctx context.Context, id string) error {
	return r.do(ctx, "delete service", http.MethodDelete, "/"+url.PathEscape(id), nil, nil)
}

func (r *Repo) CheckService(ctx context.Context, id string) error {
	return r.do(ctx, "check service", http.MethodPost, "/"+url.PathEscape(id)+"/check", nil, nil)
}

func (r *Repo) CheckAll(ctx context.Context) error {
	return r.do(ctx, "check all services", http.MethodPost, "/check-all", nil, nil)
}

// do sends one logical request, retrying transient failures. body is
// encoded as JSON when non nil; out receives the decoded response when non nil.
func (r *Repo) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
	}

	return retry.Do(
		func() error {
			return r.attempt(ctx, op, method, path, payload, out)
		},
		retry.Context(ctx),
		retry.Attempts(r.conf.Attempts),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrRetryable)
		}),
		retry.Delay(r.conf.Delay),
		retry.OnRetry(func(n uint, err error) {
			r.logger.V(1).Info("Retrying request", "op", op, "attempt", n+1, "error", err.Error())
		}),
		retry.LastErrorOnly(true),
	)
}

func (r *Repo) attempt(ctx context.Context, op, method, path string, payload []byte, out any) error {
	err := r.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, Code: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	return nil
}
