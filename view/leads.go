package view

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/site"
)

const LeadsPerPage = 10

const csvDate = "2006-01-02"

var csvHeader = []string{"Name", "WhatsApp Number", "Electricity Bill", "City", "Date"}

// ErrNotReady is returned by ExportCSV before leads have loaded.
var ErrNotReady = errors.New("leads not loaded")

// LeadTable is one rendered tab. Rows is set only when Model is in
// PhaseSuccess.
type LeadTable struct {
	Model      Model[site.LeadPage]
	Type       content.LeadType
	Rows       []content.Lead
	Matches    int
	Page       int
	TotalPages int
}

// LeadBoard is the admin leads screen: one tab per lead type, a shared
// search box and client-side pagination over the cached list.
type LeadBoard struct {
	svc *site.Service
	b   *Binding[site.LeadPage]

	mu     sync.Mutex
	tab    content.LeadType
	search string
	page   int
	notice *Notice
}

func OpenLeadBoard(svc *site.Service) *LeadBoard {
	return &LeadBoard{
		svc:  svc,
		b:    Bind(svc.Cache(), svc.LeadsQuery()),
		tab:  content.LeadResidential,
		page: 1,
	}
}

func (lb *LeadBoard) Close()                                                 { lb.b.Close() }
func (lb *LeadBoard) Changes() <-chan struct{}                               { return lb.b.Changes() }
func (lb *LeadBoard) Wait(ctx context.Context) (Model[site.LeadPage], error) { return lb.b.Wait(ctx) }

// SetTab switches tab and returns to the first page.
func (lb *LeadBoard) SetTab(t content.LeadType) {
	lb.mu.Lock()
	lb.tab, lb.page = t, 1
	lb.mu.Unlock()
}

// SetSearch filters every tab and returns to the first page.
func (lb *LeadBoard) SetSearch(q string) {
	lb.mu.Lock()
	lb.search, lb.page = q, 1
	lb.mu.Unlock()
}

func (lb *LeadBoard) SetPage(n int) {
	lb.mu.Lock()
	lb.page = max(n, 1)
	lb.mu.Unlock()
}

func (lb *LeadBoard) Notice() (Notice, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.notice == nil {
		return Notice{}, false
	}
	return *lb.notice, true
}

func (lb *LeadBoard) Table() LeadTable {
	lb.mu.Lock()
	tab, search, page := lb.tab, lb.search, lb.page
	lb.mu.Unlock()

	t := LeadTable{Model: lb.b.Model(), Type: tab, Page: page}
	if t.Model.Phase != PhaseSuccess {
		return t
	}
	matches := filterLeads(t.Model.Data.Items, tab, search)
	t.Matches = len(matches)
	t.TotalPages = (len(matches) + LeadsPerPage - 1) / LeadsPerPage
	t.Page = min(page, max(t.TotalPages, 1))
	lo := (t.Page - 1) * LeadsPerPage
	hi := min(lo+LeadsPerPage, len(matches))
	t.Rows = matches[lo:hi]
	return t
}

// ExportCSV writes every lead of type t matching the current search and
// returns the download file name.
func (lb *LeadBoard) ExportCSV(w io.Writer, t content.LeadType) (string, error) {
	m := lb.b.Model()
	if m.Phase != PhaseSuccess {
		return "", ErrNotReady
	}
	lb.mu.Lock()
	search := lb.search
	lb.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return "", err
	}
	for _, l := range filterLeads(m.Data.Items, t, search) {
		rec := []string{
			l.Name,
			l.WhatsappNumber,
			strconv.FormatFloat(l.ElectricityBill, 'f', -1, 64),
			l.City,
			l.CreatedAt.Format(csvDate),
		}
		if err := cw.Write(rec); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	return string(t) + "-leads.csv", nil
}

// Delete removes one lead. Rows only disappear once the refetched list
// arrives; a failure leaves the table as it was.
func (lb *LeadBoard) Delete(ctx context.Context, id string) error {
	err := lb.svc.DeleteLead(ctx, id)
	n := &Notice{Kind: NoticeSuccess, Title: "Lead deleted", Detail: "The lead has been successfully deleted."}
	if err != nil {
		n = &Notice{Kind: NoticeFailure, Title: "Failed to delete lead", Detail: "Please try again."}
	}
	lb.mu.Lock()
	lb.notice = n
	lb.mu.Unlock()
	return err
}

func filterLeads(all []content.Lead, t content.LeadType, search string) []content.Lead {
	q := strings.ToLower(search)
	out := make([]content.Lead, 0, len(all))
	for _, l := range all {
		if l.Type != t {
			continue
		}
		if search == "" ||
			strings.Contains(strings.ToLower(l.Name), q) ||
			strings.Contains(l.WhatsappNumber, search) ||
			strings.Contains(strings.ToLower(l.City), q) {
			out = append(out, l)
		}
	}
	return out
}
