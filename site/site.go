// Package site binds the blog and lead REST resources to the query cache.
// Views read through the Query constructors and write through the mutation
// methods; nothing else touches the cache.
package site

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/resource"
	"resty.dev/v3"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ErrUnvalidated is returned for a BlogInput that did not come from
// BlogForm.Validate.
var ErrUnvalidated = errors.New("site: blog input was not validated")

var (
	BlogEndpoint = resource.Endpoint{
		Entity:    content.EntityBlog,
		Path:      "/api/blogs",
		ListField: "blogs",
		ItemField: "blog",
	}
	LeadEndpoint = resource.Endpoint{
		Entity:    content.EntityLead,
		Path:      "/api/leads",
		ListField: "leads",
	}
)

type (
	BlogPage = resource.Page[content.BlogPost]
	LeadPage = resource.Page[content.Lead]
)

// BlogListParams select one page of posts. Zero Page and Limit take the
// defaults.
type BlogListParams struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

func (p BlogListParams) normalize() BlogListParams {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Options control persistence of query results. Codec "" disables it.
type Options struct {
	Codec     string // json | cbor | msgpack | proto
	MaxDecode int
}

type Service struct {
	qc    *querycache.Client
	blogs *resource.Client[content.BlogPost]
	leads *resource.Client[content.Lead]

	blogPageCodec codec.Codec[BlogPage]
	blogCodec     codec.Codec[content.BlogPost]
	leadCodec     codec.Codec[LeadPage]
}

func New(qc *querycache.Client, rc *resty.Client, opts Options) (*Service, error) {
	s := &Service{
		qc:    qc,
		blogs: resource.New[content.BlogPost](rc, BlogEndpoint),
		leads: resource.New[content.Lead](rc, LeadEndpoint),
	}
	if opts.Codec == "" {
		return s, nil
	}
	var err error
	if s.blogPageCodec, err = codec.ByName[BlogPage](opts.Codec, opts.MaxDecode); err != nil {
		return nil, err
	}
	if s.blogCodec, err = codec.ByName[content.BlogPost](opts.Codec, opts.MaxDecode); err != nil {
		return nil, err
	}
	if s.leadCodec, err = codec.ByName[LeadPage](opts.Codec, opts.MaxDecode); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Cache() *querycache.Client { return s.qc }

func BlogListKey(p BlogListParams) querycache.Key {
	p = p.normalize()
	return querycache.NewKey(content.EntityBlog, "list", p.Page, p.Limit, p.Search, p.Category)
}

func BlogKey(id string) querycache.Key { return querycache.NewKey(content.EntityBlog, "detail", id) }
func LeadsKey() querycache.Key         { return querycache.NewKey(content.EntityLead, "list") }

func (s *Service) BlogListQuery(p BlogListParams) querycache.Query[BlogPage] {
	p = p.normalize()
	return querycache.Query[BlogPage]{
		Key:   BlogListKey(p),
		Codec: s.blogPageCodec,
		Fetch: func(ctx context.Context) (BlogPage, error) {
			return s.blogs.List(ctx, resource.ListParams{
				Page:   p.Page,
				Limit:  p.Limit,
				Search: p.Search,
				Filter: p.Category,
			})
		},
	}
}

func (s *Service) BlogQuery(id string) querycache.Query[content.BlogPost] {
	return querycache.Query[content.BlogPost]{
		Key:   BlogKey(id),
		Codec: s.blogCodec,
		Fetch: func(ctx context.Context) (content.BlogPost, error) { return s.blogs.Get(ctx, id) },
	}
}

func (s *Service) LeadsQuery() querycache.Query[LeadPage] {
	return querycache.Query[LeadPage]{
		Key:   LeadsKey(),
		Codec: s.leadCodec,
		Fetch: func(ctx context.Context) (LeadPage, error) { return s.leads.List(ctx, resource.ListParams{}) },
	}
}

// BlogList, Blog and Leads read through the cache without keeping a
// subscription.
func (s *Service) BlogList(ctx context.Context, p BlogListParams) (BlogPage, error) {
	return querycache.Fetch(ctx, s.qc, s.BlogListQuery(p))
}

func (s *Service) Blog(ctx context.Context, id string) (content.BlogPost, error) {
	return querycache.Fetch(ctx, s.qc, s.BlogQuery(id))
}

func (s *Service) Leads(ctx context.Context) (LeadPage, error) {
	return querycache.Fetch(ctx, s.qc, s.LeadsQuery())
}

type blogUpdate struct {
	ID    string
	Input content.BlogInput
}

func (s *Service) createBlog() querycache.Mutation[content.BlogInput, content.BlogPost] {
	return querycache.Mutation[content.BlogInput, content.BlogPost]{
		Entity: content.EntityBlog,
		Op:     "create",
		Do: func(ctx context.Context, in content.BlogInput) (content.BlogPost, error) {
			return s.blogs.Create(ctx, in)
		},
	}
}

func (s *Service) updateBlog() querycache.Mutation[blogUpdate, content.BlogPost] {
	return querycache.Mutation[blogUpdate, content.BlogPost]{
		Entity: content.EntityBlog,
		Op:     "update",
		Do: func(ctx context.Context, u blogUpdate) (content.BlogPost, error) {
			return s.blogs.Update(ctx, u.ID, u.Input)
		},
	}
}

func deleteMutation(entity string, del func(context.Context, string) error) querycache.Mutation[string, struct{}] {
	return querycache.Mutation[string, struct{}]{
		Entity: entity,
		Op:     "delete",
		Do: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, del(ctx, id)
		},
	}
}

// CreateBlog and UpdateBlog accept only input from BlogForm.Validate. On
// success every blog query, list and detail, is invalidated.
func (s *Service) CreateBlog(ctx context.Context, in content.BlogInput) (content.BlogPost, error) {
	if !in.Valid() {
		return content.BlogPost{}, ErrUnvalidated
	}
	return querycache.Mutate(ctx, s.qc, s.createBlog(), in)
}

func (s *Service) UpdateBlog(ctx context.Context, id string, in content.BlogInput) (content.BlogPost, error) {
	if !in.Valid() {
		return content.BlogPost{}, ErrUnvalidated
	}
	return querycache.Mutate(ctx, s.qc, s.updateBlog(), blogUpdate{ID: id, Input: in})
}

func (s *Service) DeleteBlog(ctx context.Context, id string) error {
	_, err := querycache.Mutate(ctx, s.qc, deleteMutation(content.EntityBlog, s.blogs.Delete), id)
	return err
}

func (s *Service) DeleteLead(ctx context.Context, id string) error {
	_, err := querycache.Mutate(ctx, s.qc, deleteMutation(content.EntityLead, s.leads.Delete), id)
	return err
}
