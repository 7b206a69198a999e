package projects

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

// RemoteOptions configures a RemoteStore.
type RemoteOptions struct {
	// BaseURL is the REST root, e.g. https://example.supabase.co/rest/v1
	BaseURL string
	// Key is sent as both the apikey header and the bearer token.
	Key     string
	Table   string
	Timeout time.Duration
	// Retries bounds transport-level retries on connection errors and 5xx.
	Retries int
	Breaker *resilience.Breaker
}

// RemoteStore talks to a PostgREST-style table over HTTP. Rows are filtered
// by user_id on every call.
type RemoteStore struct {
	client  *resty.Client
	table   string
	breaker *resilience.Breaker
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote project store returned %d: %s", e.code, e.body)
}

// NewRemoteStore creates a client for the remote project table.
func NewRemoteStore(opts RemoteOptions) (*RemoteStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("missing remote project store URL")
	}
	if opts.Table == "" {
		opts.Table = "projects"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(base).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "livecode/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			tracing.InjectTraceContext(r.Context(), func(k, v string) { r.SetHeader(k, v) })
			return nil
		})
	if opts.Key != "" {
		client.SetHeader("apikey", opts.Key).SetAuthToken(opts.Key)
	}

	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.New("projects-remote", resilience.Settings{
			MaxRequests: 2,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			IsFailure:   isRemoteFailure,
		})
	}

	return &RemoteStore{client: client, table: "/" + opts.Table, breaker: breaker}, nil
}

// isRemoteFailure counts transport errors and server errors against the
// breaker. Client errors mean the request was wrong, not the service.
func isRemoteFailure(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}

func (s *RemoteStore) List(ctx context.Context, user string) ([]Project, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	return resilience.Do(ctx, s.breaker, func(ctx context.Context) ([]Project, error) {
		var out []Project
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"select":  "*",
				"user_id": "eq." + user,
				"order":   "updated_at.desc",
			}).
			SetResult(&out).
			Get(s.table)
		if err := check(resp, err); err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		if out == nil {
			out = []Project{}
		}
		return out, nil
	})
}

func (s *RemoteStore) Save(ctx context.Context, user, name string, files []workspace.File) (Project, error) {
	p, err := newProject(user, name, files)
	if err != nil {
		return Project{}, err
	}
	return resilience.Do(ctx, s.breaker, func(ctx context.Context) (Project, error) {
		var out []Project
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Prefer", "return=representation").
			SetBody(p).
			SetResult(&out).
			Post(s.table)
		if err := check(resp, err); err != nil {
			return Project{}, fmt.Errorf("save project: %w", err)
		}
		if len(out) > 0 {
			return out[0], nil
		}
		return p, nil
	})
}

func (s *RemoteStore) Load(ctx context.Context, user string, projectID id.ProjectID) ([]workspace.File, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	return resilience.Do(ctx, s.breaker, func(ctx context.Context) ([]workspace.File, error) {
		var out []Project
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"select":  "id,files",
				"id":      "eq." + string(projectID),
				"user_id": "eq." + user,
			}).
			SetResult(&out).
			Get(s.table)
		if err := check(resp, err); err != nil {
			return nil, fmt.Errorf("load project: %w", err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
		}
		return out[0].Files, nil
	})
}

func (s *RemoteStore) Delete(ctx context.Context, user string, projectID id.ProjectID) error {
	if err := checkUser(user); err != nil {
		return err
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"id":      "eq." + string(projectID),
				"user_id": "eq." + user,
			}).
			Delete(s.table)
		if err := check(resp, err); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return nil
	})
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &statusError{code: resp.StatusCode(), body: strings.TrimSpace(resp.String())}
	}
	return nil
}
