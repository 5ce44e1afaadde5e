package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/internal/devserver"
	"github.com/unkn0wn-root/querycache/resource"
	"github.com/unkn0wn-root/querycache/site"
)

func serviceFor(t *testing.T, h http.Handler) *site.Service {
	t.Helper()
	hs := httptest.NewServer(h)
	qc, err := querycache.New(querycache.Options{Namespace: "view-test"})
	if err != nil {
		t.Fatalf("querycache.New: %v", err)
	}
	rc := resource.NewRestyClient(resource.ClientConfig{BaseURL: hs.URL, Timeout: 2 * time.Second})
	svc, err := site.New(qc, rc, site.Options{})
	if err != nil {
		t.Fatalf("site.New: %v", err)
	}
	t.Cleanup(func() {
		_ = qc.Close(context.Background())
		_ = rc.Close()
		hs.Close()
	})
	return svc
}

func devService(t *testing.T) (*site.Service, *devserver.Server) {
	t.Helper()
	st, err := devserver.Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ds := devserver.New(st)
	return serviceFor(t, ds.Handler()), ds
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func validForm(title string) content.BlogForm {
	return content.BlogForm{
		Title:    title,
		Excerpt:  "Panels on every roof",
		Content:  strings.Repeat("photovoltaic ", 5),
		ImageURL: "/img/roof.png",
		Category: "news",
	}
}

func TestProject(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name  string
		st    querycache.State[int]
		phase Phase
		prev  bool
	}{
		{"idle", querycache.State[int]{}, PhaseLoading, false},
		{"loading with old data", querycache.State[int]{Status: querycache.StatusLoading, Data: 1, HasData: true}, PhaseLoading, false},
		{"success", querycache.State[int]{Status: querycache.StatusSuccess, Data: 2, HasData: true}, PhaseSuccess, false},
		{"error", querycache.State[int]{Status: querycache.StatusError, Err: boom}, PhaseError, false},
		{"error with previous", querycache.State[int]{Status: querycache.StatusError, Err: boom, Data: 3, HasData: true, Stale: true}, PhaseError, true},
	}
	for _, tc := range cases {
		m := Project(tc.st)
		if m.Phase != tc.phase || (m.Previous != nil) != tc.prev {
			t.Fatalf("%s: got %+v", tc.name, m)
		}
		if m.Phase == PhaseError && m.Data != 0 {
			t.Fatalf("%s: data exposed in error phase", tc.name)
		}
		if m.Phase == PhaseLoading && (m.Data != 0 || m.Err != nil) {
			t.Fatalf("%s: loading must carry nothing", tc.name)
		}
	}
}

func TestBlogPageNotFound(t *testing.T) {
	svc := serviceFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"blog":null}`))
	}))
	p := OpenBlogPage(svc, "gone")
	defer p.Close()

	m, err := p.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if m.Phase != PhaseError || !errors.Is(m.Err, ErrBlogNotFound) {
		t.Fatalf("model = %+v", m)
	}
}

func TestBlogListBinding(t *testing.T) {
	svc, ds := devService(t)
	if err := ds.Seed(context.Background(), []devserver.BlogRequest{{
		Title: "Net metering", Excerpt: "How credits work", Content: strings.Repeat("x", 60),
		ImageURL: "/a.png", Category: "news",
	}}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	b := OpenBlogList(svc, site.BlogListParams{})
	defer b.Close()
	m, err := b.Wait(waitCtx(t))
	if err != nil || m.Phase != PhaseSuccess || len(m.Data.Items) != 1 || m.Data.TotalPages != 1 {
		t.Fatalf("model = %+v err=%v", m, err)
	}
}

func TestBlogEditorValidationSendsNothing(t *testing.T) {
	svc, ds := devService(t)
	e := NewBlogEditor(svc)
	e.SetForm(content.BlogForm{Title: "x"})

	_, err := e.Submit(context.Background())
	var ve *content.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if e.FieldErrors()["title"] != "Title must be at least 2 characters" {
		t.Fatalf("field errors = %v", e.FieldErrors())
	}
	if _, ok := e.Notice(); ok {
		t.Fatalf("validation failure must not raise a notice")
	}
	if n := ds.Count(devserver.OpCreateBlog); n != 0 {
		t.Fatalf("requests = %d", n)
	}

	e.SetForm(validForm("Solar savings"))
	post, err := e.Submit(context.Background())
	if err != nil || post.ID == "" {
		t.Fatalf("Submit: %+v err=%v", post, err)
	}
	n, _ := e.Notice()
	if n.Kind != NoticeSuccess || n.Title != "Blog created successfully" || !e.Done() || len(e.FieldErrors()) != 0 {
		t.Fatalf("notice = %+v done=%v", n, e.Done())
	}
}

func TestBlogEditorFailureRetainsDraft(t *testing.T) {
	ctx := context.Background()
	svc, ds := devService(t)
	created, err := svc.CreateBlog(ctx, mustValid(t, validForm("Original")))
	if err != nil {
		t.Fatalf("CreateBlog: %v", err)
	}

	e := EditBlog(svc, created)
	if !e.Editing() || e.Form().Title != "Original" {
		t.Fatalf("edit form not prefilled: %+v", e.Form())
	}
	draft := validForm("Edited title")
	e.SetForm(draft)

	ds.Fail(devserver.OpUpdateBlog, http.StatusInternalServerError)
	if _, err := e.Submit(ctx); err == nil {
		t.Fatalf("expected failure")
	}
	n, _ := e.Notice()
	if n.Kind != NoticeFailure || n.Title != "Failed to update blog" || e.Done() {
		t.Fatalf("notice = %+v done=%v", n, e.Done())
	}
	if e.Form() != draft {
		t.Fatalf("draft lost: %+v", e.Form())
	}

	post, err := e.Submit(ctx)
	if err != nil || post.Title != "Edited title" {
		t.Fatalf("retry: %+v err=%v", post, err)
	}
	if n, _ := e.Notice(); n.Title != "Blog updated successfully" {
		t.Fatalf("notice = %+v", n)
	}
}

func TestBlogEditorRejectsSecondSubmit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	svc := serviceFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"n1","title":"Solar savings"}`))
	}))
	e := NewBlogEditor(svc)
	e.SetForm(validForm("Solar savings"))

	errc := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background())
		errc <- err
	}()
	<-entered
	if !e.Submitting() {
		t.Fatalf("expected submitting")
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrSubmitting) {
		t.Fatalf("second Submit: %v", err)
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if e.Submitting() {
		t.Fatalf("still submitting")
	}
}

func mustValid(t *testing.T, f content.BlogForm) content.BlogInput {
	t.Helper()
	in, err := f.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return in
}

func seedLeads(t *testing.T, ds *devserver.Server) {
	t.Helper()
	var leads []devserver.LeadRequest
	for i := 1; i <= 23; i++ {
		city := "Mumbai"
		if i%2 == 0 {
			city = "Pune"
		}
		leads = append(leads, devserver.LeadRequest{
			Name:            fmt.Sprintf("Resident %02d", i),
			WhatsappNumber:  fmt.Sprintf("+91 90000 %05d", i),
			ElectricityBill: 1500,
			City:            city,
			Type:            "residential",
		})
	}
	leads = append(leads,
		devserver.LeadRequest{Name: "Acme, Ltd", WhatsappNumber: "+91 1", ElectricityBill: 98000.5, City: "Delhi", Type: "commercial"},
		devserver.LeadRequest{Name: "Sunrise Mall", WhatsappNumber: "+91 2", ElectricityBill: 120000, City: "Pune", Type: "commercial"},
	)
	if err := ds.Seed(context.Background(), nil, leads); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func TestLeadBoardFilterAndPaginate(t *testing.T) {
	svc, ds := devService(t)
	seedLeads(t, ds)
	lb := OpenLeadBoard(svc)
	defer lb.Close()
	if _, err := lb.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	tb := lb.Table()
	if tb.Type != content.LeadResidential || len(tb.Rows) != 10 || tb.Matches != 23 || tb.TotalPages != 3 {
		t.Fatalf("page 1: rows=%d matches=%d pages=%d", len(tb.Rows), tb.Matches, tb.TotalPages)
	}
	lb.SetPage(3)
	if tb = lb.Table(); len(tb.Rows) != 3 || tb.Page != 3 {
		t.Fatalf("page 3: rows=%d page=%d", len(tb.Rows), tb.Page)
	}
	lb.SetPage(9)
	if tb = lb.Table(); tb.Page != 3 {
		t.Fatalf("page should clamp to 3, got %d", tb.Page)
	}

	lb.SetSearch("PUNE")
	if tb = lb.Table(); tb.Page != 1 || tb.Matches != 11 {
		t.Fatalf("search pune: page=%d matches=%d", tb.Page, tb.Matches)
	}
	lb.SetSearch("90000 00007")
	if tb = lb.Table(); tb.Matches != 1 || tb.Rows[0].Name != "Resident 07" {
		t.Fatalf("search by number: %+v", tb.Rows)
	}

	lb.SetSearch("")
	lb.SetTab(content.LeadCommercial)
	if tb = lb.Table(); tb.Matches != 2 || tb.TotalPages != 1 {
		t.Fatalf("commercial tab: %+v", tb)
	}
	lb.SetTab(content.LeadHousingSociety)
	if tb = lb.Table(); tb.Matches != 0 || tb.Page != 1 || len(tb.Rows) != 0 {
		t.Fatalf("empty tab: %+v", tb)
	}
}

func TestLeadBoardExportCSV(t *testing.T) {
	svc, ds := devService(t)
	seedLeads(t, ds)
	lb := OpenLeadBoard(svc)
	defer lb.Close()

	var buf bytes.Buffer
	if _, err := lb.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	name, err := lb.ExportCSV(&buf, content.LeadCommercial)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if name != "commercial-leads.csv" {
		t.Fatalf("file name = %q", name)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || lines[0] != "Name,WhatsApp Number,Electricity Bill,City,Date" {
		t.Fatalf("csv = %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"Acme, Ltd",+91 1,98000.5,Delhi,`) {
		t.Fatalf("quoted row missing: %q", buf.String())
	}
}

func TestLeadBoardBeforeLoad(t *testing.T) {
	release := make(chan struct{})
	svc := serviceFor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"leads":[]}`))
	}))
	lb := OpenLeadBoard(svc)
	defer lb.Close()
	defer close(release)

	tb := lb.Table()
	if tb.Model.Phase != PhaseLoading || tb.Rows != nil {
		t.Fatalf("loading table = %+v", tb)
	}
	if _, err := lb.ExportCSV(&bytes.Buffer{}, content.LeadResidential); !errors.Is(err, ErrNotReady) {
		t.Fatalf("export before load: %v", err)
	}
}

func TestLeadBoardDelete(t *testing.T) {
	ctx := context.Background()
	svc, ds := devService(t)
	seedLeads(t, ds)
	lb := OpenLeadBoard(svc)
	defer lb.Close()
	if _, err := lb.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	lb.SetTab(content.LeadCommercial)
	victim := lb.Table().Rows[0]

	ds.Fail(devserver.OpDeleteLead, http.StatusInternalServerError)
	if err := lb.Delete(ctx, victim.ID); err == nil {
		t.Fatalf("expected failure")
	}
	n, _ := lb.Notice()
	if n.Kind != NoticeFailure || n.Title != "Failed to delete lead" {
		t.Fatalf("notice = %+v", n)
	}
	if tb := lb.Table(); tb.Matches != 2 || tb.Model.Refreshing {
		t.Fatalf("rows changed after failed delete: %+v", tb)
	}

	if err := lb.Delete(ctx, victim.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := lb.Notice(); n.Kind != NoticeSuccess || n.Title != "Lead deleted" {
		t.Fatalf("notice = %+v", n)
	}
	if _, err := lb.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	tb := lb.Table()
	if tb.Matches != 1 || tb.Rows[0].ID == victim.ID {
		t.Fatalf("deleted lead still shown: %+v", tb.Rows)
	}
}
