// Package siteadmin implements the siteadmin command: the admin blog and
// lead screens driven from a terminal against the site backend.
package siteadmin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/unkn0wn-root/querycache/content"
	"github.com/unkn0wn-root/querycache/internal/app"
	"github.com/unkn0wn-root/querycache/internal/config"
	"github.com/unkn0wn-root/querycache/site"
	"github.com/unkn0wn-root/querycache/view"
)

const usage = `usage: siteadmin [flags] <command> [args]

commands:
  blogs list   [-page N] [-limit N] [-search Q] [-category C]
  blogs get    <id>
  blogs create -title T -excerpt E -content C -image URL -category C
  blogs update <id> [-title T] [-excerpt E] [-content C] [-image URL] [-category C]
  blogs delete <id>
  leads list   [-type T] [-search Q] [-page N]
  leads export [-type T] [-search Q] [-o DIR|-]
  leads delete <id>
`

// ErrUsage is returned for an unknown or incomplete command line.
var ErrUsage = errors.New("invalid command line")

type Config struct {
	App  config.Config
	Args []string
}

// ParseConfig parses .env, environment and global flags. Remaining
// arguments name the command.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return Config{}, err
	}
	cfg.BindFlags(fs)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Config{App: cfg, Args: fs.Args()}, nil
}

// Run executes one command. Results go to out; logs go to errOut.
func Run(ctx context.Context, cfg Config, out, errOut io.Writer) (err error) {
	if len(cfg.Args) < 2 {
		fmt.Fprint(errOut, usage)
		return ErrUsage
	}
	cmd, ok := commands[cfg.Args[0]+" "+cfg.Args[1]]
	if !ok {
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("%w: %s %s", ErrUsage, cfg.Args[0], cfg.Args[1])
	}

	a, err := app.New(ctx, cfg.App, errOut)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.Background())) }()

	return cmd(ctx, a.Site, cfg.Args[2:], out)
}

type command func(ctx context.Context, svc *site.Service, args []string, out io.Writer) error

var commands = map[string]command{
	"blogs list":   blogsList,
	"blogs get":    blogsGet,
	"blogs create": blogsCreate,
	"blogs update": blogsUpdate,
	"blogs delete": blogsDelete,
	"leads list":   leadsList,
	"leads export": leadsExport,
	"leads delete": leadsDelete,
}

func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// oneID parses flags that may follow the id, e.g. "update 42 -title x".
func oneID(fs *flag.FlagSet, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return "", fmt.Errorf("%w: %s needs an id", ErrUsage, fs.Name())
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return args[0], nil
}

func settle[V any](ctx context.Context, b *view.Binding[V]) (view.Model[V], error) {
	m, err := b.Wait(ctx)
	if err != nil {
		return m, err
	}
	if m.Phase == view.PhaseError {
		return m, m.Err
	}
	return m, nil
}

func blogsList(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	var p site.BlogListParams
	fs := subFlags("blogs list")
	fs.IntVar(&p.Page, "page", site.DefaultPage, "page number")
	fs.IntVar(&p.Limit, "limit", site.DefaultLimit, "posts per page")
	fs.StringVar(&p.Search, "search", "", "title or excerpt substring")
	fs.StringVar(&p.Category, "category", "", "exact category")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	b := view.OpenBlogList(svc, p)
	defer b.Close()
	m, err := settle(ctx, b)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tCREATED")
	for _, post := range m.Data.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", post.ID, post.Title, post.Category, post.CreatedAt.Format("2006-01-02"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "page %d of %d, %d posts\n", p.Page, m.Data.TotalPages, m.Data.TotalCount)
	return err
}

func blogsGet(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	id, err := oneID(subFlags("blogs get"), args)
	if err != nil {
		return err
	}
	b := view.OpenBlogPage(svc, id)
	defer b.Close()
	m, err := settle(ctx, b)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(m.Data)
}

func formFlags(fs *flag.FlagSet, f *content.BlogForm) {
	fs.StringVar(&f.Title, "title", f.Title, "post title")
	fs.StringVar(&f.Excerpt, "excerpt", f.Excerpt, "short summary")
	fs.StringVar(&f.Content, "content", f.Content, "post body")
	fs.StringVar(&f.ImageURL, "image", f.ImageURL, "cover image URL")
	fs.StringVar(&f.Category, "category", f.Category, "category")
}

func blogsCreate(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	var f content.BlogForm
	fs := subFlags("blogs create")
	formFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	e := view.NewBlogEditor(svc)
	e.SetForm(f)
	return submit(ctx, e, out)
}

func blogsUpdate(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: blogs update needs an id", ErrUsage)
	}
	post, err := svc.Blog(ctx, args[0])
	if err != nil {
		return err
	}
	if post.ID == "" {
		return view.ErrBlogNotFound
	}
	e := view.EditBlog(svc, post)
	f := e.Form()
	fs := subFlags("blogs update")
	formFlags(fs, &f)
	if _, err := oneID(fs, args); err != nil {
		return err
	}
	e.SetForm(f)
	return submit(ctx, e, out)
}

func submit(ctx context.Context, e *view.BlogEditor, out io.Writer) error {
	post, err := e.Submit(ctx)
	var ve *content.ValidationError
	if errors.As(err, &ve) {
		printFieldErrors(out, ve.Fields)
		return err
	}
	if n, ok := e.Notice(); ok {
		printNotice(out, n)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "id: %s\n", post.ID)
	return err
}

func blogsDelete(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	id, err := oneID(subFlags("blogs delete"), args)
	if err != nil {
		return err
	}
	n, err := view.DeleteBlog(ctx, svc, id)
	printNotice(out, n)
	return err
}

type leadFlags struct {
	typ    string
	search string
	page   int
}

func (lf *leadFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&lf.typ, "type", string(content.LeadResidential), "residential, housing_society or commercial")
	fs.StringVar(&lf.search, "search", "", "name, number or city substring")
}

func openBoard(ctx context.Context, svc *site.Service, lf leadFlags) (*view.LeadBoard, content.LeadType, error) {
	t, err := content.ParseLeadType(lf.typ)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUsage, err)
	}
	lb := view.OpenLeadBoard(svc)
	if m, err := lb.Wait(ctx); err != nil || m.Phase == view.PhaseError {
		lb.Close()
		return nil, "", errors.Join(err, m.Err)
	}
	lb.SetTab(t)
	lb.SetSearch(lf.search)
	return lb, t, nil
}

func leadsList(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	var lf leadFlags
	fs := subFlags("leads list")
	lf.bind(fs)
	fs.IntVar(&lf.page, "page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	lb, _, err := openBoard(ctx, svc, lf)
	if err != nil {
		return err
	}
	defer lb.Close()
	lb.SetPage(lf.page)

	t := lb.Table()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWHATSAPP\tBILL\tCITY\tDATE")
	for _, l := range t.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\t%s\n",
			l.ID, l.Name, l.WhatsappNumber, l.ElectricityBill, l.City, l.CreatedAt.Format("2006-01-02"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s: page %d of %d, %d leads\n", t.Type, t.Page, max(t.TotalPages, 1), t.Matches)
	return err
}

func leadsExport(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	var (
		lf  leadFlags
		dir string
	)
	fs := subFlags("leads export")
	lf.bind(fs)
	fs.StringVar(&dir, "o", ".", "output directory, or - for stdout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	lb, t, err := openBoard(ctx, svc, lf)
	if err != nil {
		return err
	}
	defer lb.Close()

	if dir == "-" {
		_, err := lb.ExportCSV(out, t)
		return err
	}
	var buf bytes.Buffer
	name, err := lb.ExportCSV(&buf, t)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	_, err = fmt.Fprintf(out, "wrote %s\n", path)
	return err
}

func leadsDelete(ctx context.Context, svc *site.Service, args []string, out io.Writer) error {
	id, err := oneID(subFlags("leads delete"), args)
	if err != nil {
		return err
	}
	lb := view.OpenLeadBoard(svc)
	defer lb.Close()
	err = lb.Delete(ctx, id)
	if n, ok := lb.Notice(); ok {
		printNotice(out, n)
	}
	return err
}

func printNotice(out io.Writer, n view.Notice) {
	if n.Detail == "" {
		fmt.Fprintln(out, n.Title)
		return
	}
	fmt.Fprintf(out, "%s: %s\n", n.Title, n.Detail)
}

func printFieldErrors(out io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(out, "%s: %s\n", n, fields[n])
	}
}
