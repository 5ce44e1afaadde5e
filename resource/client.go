package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"resty.dev/v3"
)

const tracerName = "github.com/unkn0wn-root/querycache/resource"

const maxErrBody = 512

// Endpoint describes one REST collection.
type Endpoint struct {
	Entity    string // entity type, e.g. "blog"
	Path      string // collection path, e.g. "/api/blogs"
	ListField string // list envelope field, e.g. "blogs"
	ItemField string // get envelope field; empty => bare object
}

// ListParams are sent as query parameters. Page and Limit are always sent
// when positive; Search and Filter only when non-empty.
type ListParams struct {
	Page        int
	Limit       int
	Search      string
	Filter      string
	FilterParam string // query parameter name for Filter; "" => "category"
}

// Page is one list response. Collections without counts report every item
// on a single page.
type Page[E any] struct {
	Items      []E
	TotalCount int
	TotalPages int
}

type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// NewRestyClient builds the shared HTTP client. Retries are disabled; retry
// policy belongs to the query cache.
func NewRestyClient(cfg ClientConfig) *resty.Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	return rc
}

// Client issues single round trips for one entity type.
type Client[E any] struct {
	rc     *resty.Client
	ep     Endpoint
	tracer trace.Tracer
}

func New[E any](rc *resty.Client, ep Endpoint) *Client[E] {
	return &Client[E]{rc: rc, ep: ep, tracer: otel.Tracer(tracerName)}
}

func (c *Client[E]) Entity() string { return c.ep.Entity }

func (c *Client[E]) List(ctx context.Context, p ListParams) (Page[E], error) {
	var out Page[E]
	err := c.do(ctx, "list", http.MethodGet, func(r *resty.Request) {
		if p.Page > 0 {
			r.SetQueryParam("page", strconv.Itoa(p.Page))
		}
		if p.Limit > 0 {
			r.SetQueryParam("limit", strconv.Itoa(p.Limit))
		}
		if p.Search != "" {
			r.SetQueryParam("search", p.Search)
		}
		if p.Filter != "" {
			name := p.FilterParam
			if name == "" {
				name = "category"
			}
			r.SetQueryParam(name, p.Filter)
		}
	}, c.ep.Path, func(body []byte) error {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return err
		}
		raw, ok := env[c.ep.ListField]
		if !ok {
			return fmt.Errorf("missing %q", c.ep.ListField)
		}
		if err := json.Unmarshal(raw, &out.Items); err != nil {
			return err
		}
		if out.Items == nil {
			out.Items = []E{}
		}
		var err error
		if out.TotalCount, err = intField(env, "totalCount", len(out.Items)); err != nil {
			return err
		}
		single := 1
		if len(out.Items) == 0 {
			single = 0
		}
		out.TotalPages, err = intField(env, "totalPages", single)
		return err
	})
	return out, err
}

// Get returns the zero E when the envelope holds null.
func (c *Client[E]) Get(ctx context.Context, id string) (E, error) {
	var out E
	err := c.do(ctx, "get", http.MethodGet, withID(id), c.ep.Path+"/{id}", func(body []byte) error {
		if c.ep.ItemField == "" {
			return json.Unmarshal(body, &out)
		}
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return err
		}
		raw, ok := env[c.ep.ItemField]
		if !ok {
			return fmt.Errorf("missing %q", c.ep.ItemField)
		}
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

func (c *Client[E]) Create(ctx context.Context, payload any) (E, error) {
	var out E
	err := c.do(ctx, "create", http.MethodPost, withBody(payload), c.ep.Path, decodeInto(&out))
	return out, err
}

func (c *Client[E]) Update(ctx context.Context, id string, payload any) (E, error) {
	var out E
	err := c.do(ctx, "update", http.MethodPut, func(r *resty.Request) {
		withID(id)(r)
		withBody(payload)(r)
	}, c.ep.Path+"/{id}", decodeInto(&out))
	return out, err
}

// Delete succeeds on any 2xx; the body is ignored.
func (c *Client[E]) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, withID(id), c.ep.Path+"/{id}", nil)
}

func (c *Client[E]) do(ctx context.Context, op, method string, build func(*resty.Request), path string, decode func([]byte) error) (err error) {
	ctx, span := c.tracer.Start(ctx, c.ep.Entity+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("querycache.entity", c.ep.Entity),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req := c.rc.R().SetContext(ctx)
	if build != nil {
		build(req)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return &TransportError{Entity: c.ep.Entity, Op: op, Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode()))

	body := resp.Bytes()
	if !resp.IsSuccess() {
		if len(body) > maxErrBody {
			body = body[:maxErrBody]
		}
		return &RequestFailed{Status: resp.StatusCode(), Entity: c.ep.Entity, Op: op, Body: string(body)}
	}
	if decode == nil {
		return nil
	}
	if err := decode(body); err != nil {
		return &DecodeError{Entity: c.ep.Entity, Op: op, Err: err}
	}
	return nil
}

func withID(id string) func(*resty.Request) {
	return func(r *resty.Request) { r.SetPathParam("id", id) }
}

func withBody(payload any) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(payload)
	}
}

func decodeInto[T any](out *T) func([]byte) error {
	return func(b []byte) error { return json.Unmarshal(b, out) }
}

func intField(env map[string]json.RawMessage, name string, def int) (int, error) {
	raw, ok := env[name]
	if !ok {
		return def, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
