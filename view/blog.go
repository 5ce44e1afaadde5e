package view

import (
	"context"
	"errors"
	"sync"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/site"
)

var (
	ErrBlogNotFound = errors.New("blog not found")
	ErrSubmitting   = errors.New("submit already in progress")
)

// OpenBlogList binds one page of the public blog section.
func OpenBlogList(svc *site.Service, p site.BlogListParams) *Binding[site.BlogPage] {
	return Bind(svc.Cache(), svc.BlogListQuery(p))
}

// OpenBlogPage binds a blog detail page. A successful response without a
// post renders as ErrBlogNotFound.
func OpenBlogPage(svc *site.Service, id string) *Binding[content.BlogPost] {
	b := Bind(svc.Cache(), svc.BlogQuery(id))
	b.project = func(st querycache.State[content.BlogPost]) Model[content.BlogPost] {
		m := Project(st)
		if m.Phase == PhaseSuccess && m.Data.ID == "" {
			return Model[content.BlogPost]{Phase: PhaseError, Err: ErrBlogNotFound}
		}
		return m
	}
	return b
}

type NoticeKind uint8

const (
	NoticeSuccess NoticeKind = iota + 1
	NoticeFailure
)

// Notice is a transient message for the admin UI.
type Notice struct {
	Kind   NoticeKind
	Title  string
	Detail string
}

// BlogEditor drives the create and edit forms. A failed submit keeps the
// draft so the author can retry without retyping.
type BlogEditor struct {
	svc *site.Service
	id  string

	mu         sync.Mutex
	form       content.BlogForm
	fieldErrs  map[string]string
	submitting bool
	notice     *Notice
	done       bool
}

func NewBlogEditor(svc *site.Service) *BlogEditor {
	return &BlogEditor{svc: svc}
}

func EditBlog(svc *site.Service, p content.BlogPost) *BlogEditor {
	return &BlogEditor{svc: svc, id: p.ID, form: content.FormFromPost(p)}
}

func (e *BlogEditor) Editing() bool { return e.id != "" }

func (e *BlogEditor) Form() content.BlogForm {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form
}

func (e *BlogEditor) SetForm(f content.BlogForm) {
	e.mu.Lock()
	e.form = f
	e.mu.Unlock()
}

func (e *BlogEditor) FieldErrors() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.fieldErrs))
	for k, v := range e.fieldErrs {
		out[k] = v
	}
	return out
}

func (e *BlogEditor) Submitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

// Notice returns the last notice, if any.
func (e *BlogEditor) Notice() (Notice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.notice == nil {
		return Notice{}, false
	}
	return *e.notice, true
}

// Done reports whether a submit succeeded and the form should close.
func (e *BlogEditor) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Submit validates the draft and, if valid, performs exactly one create or
// update. A *content.ValidationError means nothing was sent.
func (e *BlogEditor) Submit(ctx context.Context) (content.BlogPost, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return content.BlogPost{}, ErrSubmitting
	}
	in, err := e.form.Validate()
	if err != nil {
		var ve *content.ValidationError
		if errors.As(err, &ve) {
			e.fieldErrs = ve.Fields
		}
		e.mu.Unlock()
		return content.BlogPost{}, err
	}
	e.fieldErrs = nil
	e.submitting = true
	e.notice = nil
	e.mu.Unlock()

	var post content.BlogPost
	if e.Editing() {
		post, err = e.svc.UpdateBlog(ctx, e.id, in)
	} else {
		post, err = e.svc.CreateBlog(ctx, in)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		title := "Failed to create blog"
		if e.Editing() {
			title = "Failed to update blog"
		}
		e.notice = &Notice{Kind: NoticeFailure, Title: title, Detail: err.Error()}
		return content.BlogPost{}, err
	}
	title := "Blog created successfully"
	if e.Editing() {
		title = "Blog updated successfully"
	}
	e.notice = &Notice{Kind: NoticeSuccess, Title: title}
	e.done = true
	return post, nil
}

// DeleteBlog removes a post from the admin list.
func DeleteBlog(ctx context.Context, svc *site.Service, id string) (Notice, error) {
	if err := svc.DeleteBlog(ctx, id); err != nil {
		return Notice{Kind: NoticeFailure, Title: "Failed to delete blog", Detail: err.Error()}, err
	}
	return Notice{Kind: NoticeSuccess, Title: "Blog deleted"}, nil
}
