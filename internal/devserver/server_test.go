package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func blogReq(title, category string) BlogRequest {
	return BlogRequest{
		Title:    title,
		Excerpt:  "An excerpt long enough",
		Content:  strings.Repeat("panels ", 10),
		ImageURL: "/x.png",
		Category: category,
	}
}

func TestBlogCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/blogs", blogReq("Net metering", "news"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		CreatedAt string `json:"createdAt"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.ID == "" || created.CreatedAt == "" {
		t.Fatalf("server fields missing: %s", rec.Body)
	}

	rec = do(t, s, http.MethodGet, "/api/blogs/"+created.ID, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"blog":{`) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodPut, "/api/blogs/"+created.ID, blogReq("Net metering 2", "news"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Net metering 2") {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}

	if rec = do(t, s, http.MethodDelete, "/api/blogs/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec = do(t, s, http.MethodGet, "/api/blogs/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
	if rec = do(t, s, http.MethodDelete, "/api/blogs/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestListBlogsFilters(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if err := s.Seed(ctx, []BlogRequest{
		blogReq("Solar 101", "news"),
		blogReq("Inverters explained", "guides"),
		blogReq("100% solar", "news"),
	}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	var page struct {
		Blogs      []map[string]any `json:"blogs"`
		TotalCount int              `json:"totalCount"`
		TotalPages int              `json:"totalPages"`
	}
	get := func(path string) {
		t.Helper()
		rec := do(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
		page.Blogs = nil
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}

	get("/api/blogs?page=1&limit=2")
	if len(page.Blogs) != 2 || page.TotalCount != 3 || page.TotalPages != 2 {
		t.Fatalf("page = %+v", page)
	}
	get("/api/blogs?page=1&limit=10&category=news")
	if page.TotalCount != 2 {
		t.Fatalf("category filter count = %d", page.TotalCount)
	}
	get("/api/blogs?search=SOLAR")
	if page.TotalCount != 2 {
		t.Fatalf("search count = %d", page.TotalCount)
	}
	get("/api/blogs?search=%25")
	if page.TotalCount != 1 {
		t.Fatalf("literal %% search count = %d", page.TotalCount)
	}
}

func TestValidationAndInjectedFailures(t *testing.T) {
	s := newTestServer(t)

	if rec := do(t, s, http.MethodPost, "/api/blogs", BlogRequest{Title: "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid blog: %d", rec.Code)
	}
	bad := LeadRequest{Name: "A", WhatsappNumber: "1", City: "Pune", Type: "industrial"}
	if rec := do(t, s, http.MethodPost, "/api/leads", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid lead: %d", rec.Code)
	}

	s.Fail(OpListLeads, http.StatusInternalServerError)
	if rec := do(t, s, http.MethodGet, "/api/leads", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("injected: %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/leads", nil); rec.Code != http.StatusOK || rec.Body.String() != `{"leads":[]}` {
		t.Fatalf("after injection: %d %s", rec.Code, rec.Body)
	}
	if n := s.Count(OpListLeads); n != 2 {
		t.Fatalf("Count = %d", n)
	}
}

func TestLeadLifecycle(t *testing.T) {
	s := newTestServer(t)
	l := LeadRequest{Name: "Asha", WhatsappNumber: "+91 98", ElectricityBill: 3200, City: "Pune", Type: "residential"}
	rec := do(t, s, http.MethodPost, "/api/leads", l)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lead: %d %s", rec.Code, rec.Body)
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = do(t, s, http.MethodGet, "/api/leads", nil)
	if !strings.Contains(rec.Body.String(), `"type":"residential"`) {
		t.Fatalf("list leads: %s", rec.Body)
	}
	if rec = do(t, s, http.MethodDelete, "/api/leads/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete lead: %d", rec.Code)
	}
}
