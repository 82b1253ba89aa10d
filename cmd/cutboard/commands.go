package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/pders01/cutboard/internal/browse"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/favicon"
	"github.com/pders01/cutboard/internal/library"
	"github.com/pders01/cutboard/internal/media"
	"github.com/pders01/cutboard/internal/query"
	"github.com/pders01/cutboard/internal/storage"
)

var (
	listKind      string
	listSearch    string
	listDomain    string
	listPage      int
	listFavorites bool
	listJSON      bool

	exportKind   string
	exportOut    string
	exportReveal bool
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

var listCmd = &cobra.Command{
	Use:   "list [bucket]",
	Short: "List buckets, or one page of a bucket's entries",
	Long: `Without arguments, list buckets. With a bucket name or id, print one
page of its entries using the same filters as the browser.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources <bucket>",
	Short: "List the source domains of a bucket's entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runSources,
}

var exportCmd = &cobra.Command{
	Use:   "export <bucket>",
	Short: "Export a bucket's text entries to Markdown or its images to a ZIP",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var faviconCmd = &cobra.Command{
	Use:   "favicon <domain>...",
	Short: "Resolve site icons through the provider cascade",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFavicon,
}

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import clipboard entries from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local storage usage",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listKind, "kind", "text", "Content kind: text or image")
	f.StringVar(&listSearch, "search", "", "Only entries containing this text")
	f.StringVar(&listDomain, "domain", "", "Only entries copied from this site or its subdomains")
	f.IntVar(&listPage, "page", 1, "Page to print; clamped to the last page")
	f.BoolVar(&listFavorites, "favorites", false, "List favorite entries instead of a bucket")
	f.BoolVar(&listJSON, "json", false, "Print entries as JSON")

	ef := exportCmd.Flags()
	ef.StringVar(&exportKind, "kind", "text", "Content kind: text or image")
	ef.StringVarP(&exportOut, "out", "o", "", "Destination file (default: export directory with a dated name)")
	ef.BoolVar(&exportReveal, "reveal", false, "Reveal the finished file in the file manager")
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 && !listFavorites {
		return printBuckets(ctx, out, e.lib)
	}

	kind, err := storage.ParseContentKind(listKind)
	if err != nil {
		return err
	}
	q := query.Query{
		Target:    query.FavoritesTarget(),
		Kind:      kind,
		RawSearch: listSearch,
		Search:    listSearch,
		Domain:    listDomain,
		Page:      max(1, listPage),
	}
	if !listFavorites {
		b, err := e.bucket(args[0])
		if err != nil {
			return err
		}
		q.Target = query.BucketTarget(b.ID)
	}

	ex := browse.NewExecutor(e.lib, e.cfg.Browse.PageSize)
	if err := ex.Fetch(ctx, q); err != nil {
		return err
	}
	if v := ex.View(); q.Page > v.TotalPages {
		q.Page = v.TotalPages
		if err := ex.Fetch(ctx, q); err != nil {
			return err
		}
	}
	v := ex.View()

	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Page       int              `json:"page"`
			TotalPages int              `json:"total_pages"`
			Counts     storage.Counts   `json:"counts"`
			Entries    []*storage.Entry `json:"entries"`
		}{v.Query.Page, v.TotalPages, v.Counts, v.Entries})
	}

	t := newTable("ID", "CREATED", "★", "ENTRY", "SOURCE")
	for _, entry := range v.Entries {
		star := ""
		if entry.IsFavorite {
			star = "★"
		}
		t.Row(fmt.Sprint(entry.ID), entry.CreatedAt, star, preview(entry, 60), library.ExtractDomain(entry.SourceURL))
	}
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "page %d/%d • text %d • image %d\n", v.Query.Page, v.TotalPages, v.Counts.Text, v.Counts.Image)
	return nil
}

func printBuckets(ctx context.Context, out io.Writer, lib *library.Library) error {
	buckets, err := lib.Buckets(ctx)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		fmt.Fprintln(out, "No buckets yet. Seed some with `cutboard import`.")
		return nil
	}
	t := newTable("ID", "★", "BUCKET", "ENTRIES")
	for _, b := range buckets {
		star := ""
		if b.IsFavorite {
			star = "★"
		}
		t.Row(fmt.Sprint(b.ID), star, b.Name, fmt.Sprint(b.EntryCount))
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

// preview is a one-line rendering of an entry; sensitive text stays masked.
func preview(e *storage.Entry, limit int) string {
	var s string
	switch {
	case e.Kind == storage.KindImage:
		s = e.ImagePath
	case e.IsSensitive:
		return "••••••••"
	default:
		s = strings.Join(strings.Fields(e.TextBody), " ")
	}
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}

func runSources(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.bucket(args[0])
	if err != nil {
		return err
	}
	sources, err := e.lib.ListSourceDomains(cmd.Context(), b.ID)
	if err != nil {
		return err
	}

	t := newTable("", "DOMAIN", "ENTRIES")
	for _, s := range sources {
		t.Row(renderBadge(favicon.BadgeFor(s.Domain)), s.Domain, fmt.Sprint(s.Count))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func renderBadge(b favicon.Badge) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(b.Color)).
		Padding(0, 1).
		Render(b.Glyph)
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.bucket(args[0])
	if err != nil {
		return err
	}
	kind, err := storage.ParseContentKind(exportKind)
	if err != nil {
		return err
	}
	dest := exportOut
	if dest == "" {
		dest = filepath.Join(e.cfg.Export.Directory, export.DefaultFilename(e.cfg.Export.Product, b.Name, kind, time.Now()))
	}

	runner := export.NewRunner(e.lib)
	defer runner.Dispose()

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	errOut := cmd.ErrOrStderr()
	runner.OnUpdate(func(s export.Status) {
		if s.State == export.StateRunning {
			fmt.Fprintf(errOut, "\r%s", bar.ViewAs(float64(s.Progress)/100))
		}
	})

	// the job context ends with the command's, so an interrupt cancels it
	if _, err := runner.Start(cmd.Context(), export.Request{
		BucketID:    b.ID,
		BucketName:  b.Name,
		Kind:        kind,
		Destination: dest,
	}); err != nil {
		return err
	}
	if err := runner.Wait(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(errOut)

	s := runner.Status()
	switch s.State {
	case export.StateDone:
		fmt.Fprintln(cmd.OutOrStdout(), s.Path)
		if exportReveal {
			return media.NewLauncher(e.cfg).Reveal(s.Path)
		}
		return nil
	case export.StateCancelled:
		return errors.New("export cancelled")
	default:
		return fmt.Errorf("export failed: %w", s.Err)
	}
}

func runFavicon(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := e.favicons()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, domain := range args {
		res, err := svc.Resolve(cmd.Context(), domain)
		switch {
		case err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", renderBadge(res.Badge), domain, err)
		case res.Failed():
			fmt.Fprintf(out, "%s %s: no icon found\n", renderBadge(res.Badge), res.Domain)
		default:
			fmt.Fprintf(out, "%s %s\n", res.Domain, res.URL)
		}
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := e.lib.Import(cmd.Context(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries\n", n)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.lib.Stats(cmd.Context())
	if err != nil {
		return err
	}

	t := newTable("", "")
	t.Row("database", humanBytes(st.DatabaseBytes))
	t.Row("buckets", fmt.Sprint(st.Buckets))
	t.Row("entries", fmt.Sprint(st.Entries))
	t.Row("images", fmt.Sprintf("%d (%s)", st.ImageCount, humanBytes(st.ImageBytes)))
	if st.IndexedDocs >= 0 {
		t.Row("indexed", fmt.Sprint(st.IndexedDocs))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
