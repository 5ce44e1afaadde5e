package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/querycache/content"
)

var ErrNotFound = errors.New("devserver: not found")

const schema = `
CREATE TABLE IF NOT EXISTS blogs (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	excerpt    TEXT NOT NULL,
	content    TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	category   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS blogs_created ON blogs (created_at DESC);
CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	whatsapp_number  TEXT NOT NULL,
	electricity_bill REAL NOT NULL,
	city             TEXT NOT NULL,
	type             TEXT NOT NULL,
	created_at       INTEGER NOT NULL
);`

// Store keeps blogs and leads in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func likePattern(s string) string {
	return "%" + strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s) + "%"
}

func (s *Store) stamp() time.Time { return s.now().UTC().Truncate(time.Millisecond) }

// Open opens dsn ("" => private in-memory database) and applies the schema.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection: every :memory: connection is its own database
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type BlogQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// ListBlogs returns one page, newest first, and the total match count.
// Search matches title or excerpt case-insensitively.
func (s *Store) ListBlogs(ctx context.Context, q BlogQuery) ([]content.BlogPost, int, error) {
	var (
		where []string
		args  []any
	)
	if q.Search != "" {
		where = append(where, `(title LIKE ? ESCAPE '\' OR excerpt LIKE ? ESCAPE '\')`)
		p := likePattern(q.Search)
		args = append(args, p, p)
	}
	if q.Category != "" {
		where = append(where, `category = ?`)
		args = append(args, q.Category)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count blogs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, excerpt, content, image_url, category, created_at FROM blogs`+cond+
			` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, q.Limit, (q.Page-1)*q.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	out := []content.BlogPost{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanBlog(r scanner) (content.BlogPost, error) {
	var (
		b  content.BlogPost
		ts int64
	)
	if err := r.Scan(&b.ID, &b.Title, &b.Excerpt, &b.Content, &b.ImageURL, &b.Category, &ts); err != nil {
		return content.BlogPost{}, err
	}
	b.CreatedAt = fromMillis(ts)
	return b, nil
}

func (s *Store) GetBlog(ctx context.Context, id string) (content.BlogPost, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, excerpt, content, image_url, category, created_at FROM blogs WHERE id = ?`, id)
	b, err := scanBlog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.BlogPost{}, ErrNotFound
	}
	if err != nil {
		return content.BlogPost{}, fmt.Errorf("get blog: %w", err)
	}
	return b, nil
}

func (s *Store) CreateBlog(ctx context.Context, in BlogRequest) (content.BlogPost, error) {
	b := content.BlogPost{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Excerpt:   in.Excerpt,
		Content:   in.Content,
		ImageURL:  in.ImageURL,
		Category:  in.Category,
		CreatedAt: s.stamp(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blogs (id, title, excerpt, content, image_url, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Excerpt, b.Content, b.ImageURL, b.Category, toMillis(b.CreatedAt))
	if err != nil {
		return content.BlogPost{}, fmt.Errorf("insert blog: %w", err)
	}
	return b, nil
}

func (s *Store) UpdateBlog(ctx context.Context, id string, in BlogRequest) (content.BlogPost, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blogs SET title = ?, excerpt = ?, content = ?, image_url = ?, category = ? WHERE id = ?`,
		in.Title, in.Excerpt, in.Content, in.ImageURL, in.Category, id)
	if err != nil {
		return content.BlogPost{}, fmt.Errorf("update blog: %w", err)
	}
	if err := affected(res); err != nil {
		return content.BlogPost{}, err
	}
	return s.GetBlog(ctx, id)
}

func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return affected(res)
}

func (s *Store) ListLeads(ctx context.Context) ([]content.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, whatsapp_number, electricity_bill, city, type, created_at FROM leads ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := []content.Lead{}
	for rows.Next() {
		var (
			l  content.Lead
			lt string
			ts int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.WhatsappNumber, &l.ElectricityBill, &l.City, &lt, &ts); err != nil {
			return nil, err
		}
		if l.Type, err = content.ParseLeadType(lt); err != nil {
			return nil, fmt.Errorf("lead %s: %w", l.ID, err)
		}
		l.CreatedAt = fromMillis(ts)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CreateLead(ctx context.Context, in LeadRequest) (content.Lead, error) {
	lt, err := content.ParseLeadType(in.Type)
	if err != nil {
		return content.Lead{}, err
	}
	l := content.Lead{
		ID:              uuid.NewString(),
		Name:            in.Name,
		WhatsappNumber:  in.WhatsappNumber,
		ElectricityBill: in.ElectricityBill,
		City:            in.City,
		Type:            lt,
		CreatedAt:       s.stamp(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, whatsapp_number, electricity_bill, city, type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.WhatsappNumber, l.ElectricityBill, l.City, string(l.Type), toMillis(l.CreatedAt))
	if err != nil {
		return content.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return l, nil
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
