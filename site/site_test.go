package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/internal/devserver"
	"github.com/unkn0wn-root/querycache/resource"
)

func newService(t *testing.T, opts Options) (*Service, *devserver.Server) {
	t.Helper()
	st, err := devserver.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ds := devserver.New(st)
	hs := httptest.NewServer(ds.Handler())

	qc, err := querycache.New(querycache.Options{Namespace: "site-test"})
	if err != nil {
		t.Fatalf("querycache.New: %v", err)
	}
	rc := resource.NewRestyClient(resource.ClientConfig{BaseURL: hs.URL, Timeout: 2 * time.Second})
	svc, err := New(qc, rc, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = qc.Close(context.Background())
		_ = rc.Close()
		hs.Close()
		_ = st.Close()
	})
	return svc, ds
}

func validInput(t *testing.T, title, category string) content.BlogInput {
	t.Helper()
	in, err := content.BlogForm{
		Title:    title,
		Excerpt:  "A short summary",
		Content:  strings.Repeat("sunlight ", 8),
		ImageURL: "/x.png",
		Category: category,
	}.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return in
}

func settle[V any](t *testing.T, s *querycache.Subscription[V]) querycache.State[V] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	st, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return st
}

func TestKeys(t *testing.T) {
	if !BlogListKey(BlogListParams{}).Equal(BlogListKey(BlogListParams{Page: 1, Limit: 10})) {
		t.Fatalf("defaults should normalise to the same key")
	}
	if BlogListKey(BlogListParams{Search: "a"}).Equal(BlogListKey(BlogListParams{Category: "a"})) {
		t.Fatalf("search and category must be distinct params")
	}
	blog := querycache.NewKey(content.EntityBlog)
	if !BlogKey("1").HasPrefix(blog) || !BlogListKey(BlogListParams{}).HasPrefix(blog) || LeadsKey().HasPrefix(blog) {
		t.Fatalf("entity prefixes wrong")
	}
}

func TestRepeatedListServedFromCache(t *testing.T) {
	ctx := context.Background()
	svc, ds := newService(t, Options{})

	if _, err := svc.BlogList(ctx, BlogListParams{Page: 1, Limit: 10, Search: ""}); err != nil {
		t.Fatalf("BlogList: %v", err)
	}
	if _, err := svc.BlogList(ctx, BlogListParams{}); err != nil {
		t.Fatalf("BlogList: %v", err)
	}
	if n := ds.Count(devserver.OpListBlogs); n != 1 {
		t.Fatalf("list requests = %d, want 1", n)
	}
}

func TestCreateBlogRefreshesCategoryList(t *testing.T) {
	ctx := context.Background()
	svc, ds := newService(t, Options{})

	sub := querycache.Observe(svc.Cache(), svc.BlogListQuery(BlogListParams{Category: "news"}))
	defer sub.Close()
	if st := settle(t, sub); st.Status != querycache.StatusSuccess || len(st.Data.Items) != 0 {
		t.Fatalf("initial list: %+v", st)
	}

	created, err := svc.CreateBlog(ctx, validInput(t, "A1", "news"))
	if err != nil {
		t.Fatalf("CreateBlog: %v", err)
	}

	st := settle(t, sub)
	if len(st.Data.Items) != 1 || st.Data.Items[0].ID != created.ID || st.Stale {
		t.Fatalf("list after create: %+v", st)
	}
	if n := ds.Count(devserver.OpListBlogs); n != 2 {
		t.Fatalf("list requests = %d, want 2", n)
	}
}

func TestUpdateBlogRefreshesDetail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, Options{})

	created, err := svc.CreateBlog(ctx, validInput(t, "Before", "news"))
	if err != nil {
		t.Fatalf("CreateBlog: %v", err)
	}
	sub := querycache.Observe(svc.Cache(), svc.BlogQuery(created.ID))
	defer sub.Close()
	if st := settle(t, sub); st.Data.Title != "Before" {
		t.Fatalf("detail: %+v", st)
	}

	if _, err := svc.UpdateBlog(ctx, created.ID, validInput(t, "After", "news")); err != nil {
		t.Fatalf("UpdateBlog: %v", err)
	}
	if st := settle(t, sub); st.Data.Title != "After" {
		t.Fatalf("detail after update: %+v", st)
	}

	if err := svc.DeleteBlog(ctx, created.ID); err != nil {
		t.Fatalf("DeleteBlog: %v", err)
	}
	st := settle(t, sub)
	var rf *resource.RequestFailed
	if st.Status != querycache.StatusError || !errors.As(st.Err, &rf) || rf.Status != http.StatusNotFound {
		t.Fatalf("detail after delete: %+v", st)
	}
	if !st.HasData || !st.Stale {
		t.Fatalf("previous post should be kept as stale: %+v", st)
	}
}

func TestDeleteLeadFailureKeepsRows(t *testing.T) {
	ctx := context.Background()
	svc, ds := newService(t, Options{})
	if err := ds.Seed(ctx, nil, []devserver.LeadRequest{
		{Name: "Asha", WhatsappNumber: "98", ElectricityBill: 3000, City: "Pune", Type: "residential"},
	}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	sub := querycache.Observe(svc.Cache(), svc.LeadsQuery())
	defer sub.Close()
	before := settle(t, sub)
	if len(before.Data.Items) != 1 {
		t.Fatalf("leads: %+v", before)
	}
	id := before.Data.Items[0].ID

	ds.Fail(devserver.OpDeleteLead, http.StatusInternalServerError)
	err := svc.DeleteLead(ctx, id)
	var me *querycache.MutationError
	var rf *resource.RequestFailed
	if !errors.As(err, &me) || !errors.As(err, &rf) || rf.Status != 500 || rf.Entity != content.EntityLead {
		t.Fatalf("expected wrapped RequestFailed 500, got %v", err)
	}

	after := sub.State()
	if after.Stale || after.Fetching || len(after.Data.Items) != 1 || after.Data.Items[0].ID != id {
		t.Fatalf("leads changed after failed delete: %+v", after)
	}
	if n := ds.Count(devserver.OpListLeads); n != 1 {
		t.Fatalf("lead list requests = %d, want 1", n)
	}

	if err := svc.DeleteLead(ctx, id); err != nil {
		t.Fatalf("DeleteLead: %v", err)
	}
	if st := settle(t, sub); len(st.Data.Items) != 0 {
		t.Fatalf("deleted lead still listed: %+v", st)
	}
}

func TestUnvalidatedInputNeverSent(t *testing.T) {
	ctx := context.Background()
	svc, ds := newService(t, Options{})

	if _, err := svc.CreateBlog(ctx, content.BlogInput{Title: "x"}); !errors.Is(err, ErrUnvalidated) {
		t.Fatalf("CreateBlog: %v", err)
	}
	if _, err := svc.UpdateBlog(ctx, "1", content.BlogInput{}); !errors.Is(err, ErrUnvalidated) {
		t.Fatalf("UpdateBlog: %v", err)
	}
	if n := ds.Count(devserver.OpCreateBlog) + ds.Count(devserver.OpUpdateBlog); n != 0 {
		t.Fatalf("requests sent = %d", n)
	}
}

func TestUnknownCodec(t *testing.T) {
	qc, _ := querycache.New(querycache.Options{Namespace: "x"})
	defer qc.Close(context.Background())
	if _, err := New(qc, resource.NewRestyClient(resource.ClientConfig{}), Options{Codec: "xml"}); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}
