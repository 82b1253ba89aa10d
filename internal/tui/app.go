package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pders01/cutboard/internal/browse"
	"github.com/pders01/cutboard/internal/cache"
	"github.com/pders01/cutboard/internal/config"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/favicon"
	"github.com/pders01/cutboard/internal/library"
	"github.com/pders01/cutboard/internal/media"
	"github.com/pders01/cutboard/internal/query"
	"github.com/pders01/cutboard/internal/storage"
)

// Lines taken by the entries view above the list: header, subtitle,
// framed search input and the domain chips.
const entriesChrome = 6

type App struct {
	config     *config.Config
	lib        *library.Library
	controller *query.Controller
	executor   *browse.Executor
	runner     *export.Runner
	favicons   *favicon.Service
	launcher   *media.Launcher
	keyHandler *KeyHandler

	ctx     context.Context
	cancel  context.CancelFunc
	changed chan struct{}
	release []func()

	bucketList  list.Model
	entryList   list.Model
	searchInput textinput.Model
	destInput   textinput.Model
	viewport    viewport.Model
	progress    progress.Model

	view         View
	previousView View
	buckets      []*storage.Bucket
	target       bucketItem
	current      browse.View
	exportStatus export.Status
	icons        map[string]favicon.Result
	images       *cache.Bounded[string, *library.Image]
	resolving    map[string]bool
	pending      *pendingDelete
	previewEntry *storage.Entry
	width        int
	height       int
	status       string
	statusKind   StatusKind
	err          error

	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	copyText func(string) error
}

// NewApp wires the browsing pipeline over lib. favicons may be nil, in
// which case domain chips show placeholder badges only.
func NewApp(lib *library.Library, favicons *favicon.Service, cfg *config.Config) *App {
	bucketList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	bucketList.Title = "› buckets"
	bucketList.SetShowStatusBar(false)
	bucketList.SetFilteringEnabled(true)
	bucketList.SetShowHelp(true)

	// search goes through the query controller, not the list filter
	entryList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	entryList.SetShowTitle(false)
	entryList.SetShowStatusBar(false)
	entryList.SetFilteringEnabled(false)
	entryList.SetShowHelp(false)

	si := textinput.New()
	si.Placeholder = "Search entries..."
	si.CharLimit = 256

	di := textinput.New()
	di.Placeholder = "Export destination..."

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:      cfg,
		lib:         lib,
		controller:  query.NewController(query.WallClock{}, cfg.Search.Debounce, query.BucketTarget(0)),
		executor:    browse.NewExecutor(lib, cfg.Browse.PageSize),
		runner:      export.NewRunner(lib),
		favicons:    favicons,
		launcher:    media.NewLauncher(cfg),
		ctx:         ctx,
		cancel:      cancel,
		changed:     make(chan struct{}, 1),
		images:      cache.NewBounded[string, *library.Image](cfg.Cache.ImageCapacity),
		copyText:    clipboard.WriteAll,
		bucketList:  bucketList,
		entryList:   entryList,
		searchInput: si,
		destInput:   di,
		viewport:    viewport.New(0, 0),
		progress:    progress.New(progress.WithGradient(string(SecondaryColor), string(AccentColor))),
		view:        ViewBuckets,
		icons:       make(map[string]favicon.Result),
		resolving:   make(map[string]bool),
	}

	app.controller.OnSettle(app.fetch)
	app.executor.OnUpdate(func(browse.View) { app.notify() })
	app.runner.OnUpdate(func(export.Status) { app.notify() })
	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

// Close stops background work. Call it once the program has exited.
func (a *App) Close() {
	a.runner.Dispose()
	a.cancel()
	for _, release := range a.release {
		release()
	}
	a.release = nil
}

// fetch runs off the UI goroutine. Failures are logged by the executor and
// leave the last good page on screen.
func (a *App) fetch(q query.Query) {
	go func() { _ = a.executor.Fetch(a.ctx, q) }()
}

// notify coalesces executor and export updates into one pending refresh.
func (a *App) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wordWrapWidth := (a.width * 9) / 10
	if wordWrapWidth > 120 {
		wordWrapWidth = 120
	}
	if wordWrapWidth < 40 {
		wordWrapWidth = 40
	}
	if a.width < 50 {
		wordWrapWidth = max(20, a.width-4)
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	changes, release := a.lib.Changes()
	bucketChanges, releaseBuckets := a.lib.Changes()
	a.release = append(a.release, release, releaseBuckets)
	go a.executor.Watch(a.ctx, changes, a.controller.Query)

	return tea.Batch(
		a.loadBuckets(),
		a.waitForRefresh(),
		a.waitForStoreChange(bucketChanges),
		tea.EnterAltScreen,
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case bucketsLoadedMsg:
		a.setBuckets(msg.buckets)

	case storeChangedMsg:
		return a, tea.Batch(a.loadBuckets(), a.waitForStoreChange(msg.changes))

	case refreshMsg:
		return a, tea.Batch(append(a.applyRefresh(), a.waitForRefresh())...)

	case faviconMsg:
		delete(a.resolving, msg.domain)
		a.icons[msg.domain] = msg.result

	case imagesLoadedMsg:
		for _, h := range msg.handles {
			// failed handles stay nil so they are not retried every refresh
			a.images.Put(h, msg.images[h])
		}
		a.syncEntries()

	case previewRenderedMsg:
		if a.view == ViewPreview {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
		}

	case bucketClearedMsg:
		a.setStatus(MsgBucketCleared(msg.name, msg.removed), StatusSuccess)
		return a, a.loadBuckets()

	case statusMsg:
		a.setStatus(msg.text, msg.kind)

	case errorMsg:
		a.err = msg.err

	case progress.FrameMsg:
		model, cmd := a.progress.Update(msg)
		if pm, ok := model.(progress.Model); ok {
			a.progress = pm
		}
		return a, cmd
	}

	switch a.view {
	case ViewBuckets:
		newListModel, cmd := a.bucketList.Update(msg)
		a.bucketList = newListModel
		cmds = append(cmds, cmd)
	case ViewEntries:
		newListModel, cmd := a.entryList.Update(msg)
		a.entryList = newListModel
		cmds = append(cmds, cmd)
	case ViewPreview:
		switch msg.(type) {
		case tea.WindowSizeMsg, tea.MouseMsg:
			newViewport, cmd := a.viewport.Update(msg)
			a.viewport = newViewport
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height
	a.bucketList.SetSize(width, height-3)
	a.entryList.SetSize(width, max(3, height-3-entriesChrome))
	a.viewport.Width = width
	a.viewport.Height = height - 3

	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = width
	}
	a.searchInput.Width = inputWidth
	a.destInput.Width = inputWidth
	a.progress.Width = min(inputWidth, 60)
}

func (a *App) setStatus(text string, kind StatusKind) {
	a.status = text
	a.statusKind = kind
	a.err = nil
}

func (a *App) setBuckets(buckets []*storage.Bucket) {
	a.buckets = buckets
	items := make([]list.Item, 0, len(buckets)+1)
	items = append(items, bucketItem{favorites: true})
	for _, b := range buckets {
		items = append(items, bucketItem{bucket: b})
	}
	a.bucketList.SetItems(items)
}

// applyRefresh pulls the latest executor and export snapshots into the view.
func (a *App) applyRefresh() []tea.Cmd {
	var cmds []tea.Cmd

	a.current = a.executor.View()
	a.syncEntries()
	cmds = append(cmds, a.resolveIcons(a.current.Sources)...)
	if cmd := a.loadPageImages(); cmd != nil {
		cmds = append(cmds, cmd)
	}

	prev := a.exportStatus
	s := a.runner.Status()
	a.exportStatus = s
	if s.JobID == prev.JobID && s.State == prev.State && s.Progress == prev.Progress {
		return cmds
	}
	cmds = append(cmds, a.progress.SetPercent(float64(s.Progress)/100))
	if s.JobID != prev.JobID || s.State != prev.State {
		switch s.State {
		case export.StateDone:
			a.setStatus(MsgExported(s.Path), StatusSuccess)
		case export.StateFailed:
			a.err = wrapErr("export", s.Err)
		case export.StateCancelled:
			a.setStatus(MsgExportCancel, StatusWarn)
		}
	}
	return cmds
}

func (a *App) syncEntries() {
	items := make([]list.Item, len(a.current.Entries))
	for i, e := range a.current.Entries {
		item := entryItem{entry: e, domain: library.ExtractDomain(e.SourceURL)}
		if e.Kind == storage.KindImage {
			item.image, _ = a.images.Get(e.ImagePath)
		}
		items[i] = item
	}
	a.entryList.SetItems(items)
	if n := len(items); n > 0 && a.entryList.Index() >= n {
		a.entryList.Select(n - 1)
	}
}

func (a *App) resolveIcons(sources []storage.SourceDomain) []tea.Cmd {
	if a.favicons == nil {
		return nil
	}
	var cmds []tea.Cmd
	for _, s := range sources {
		if _, ok := a.icons[s.Domain]; ok || a.resolving[s.Domain] {
			continue
		}
		a.resolving[s.Domain] = true
		cmds = append(cmds, a.resolveIcon(s.Domain))
	}
	return cmds
}

// openTarget switches the browser to a bucket or the favorites view.
func (a *App) openTarget(item bucketItem) {
	a.target = item
	a.current = browse.View{TotalPages: 1}
	a.entryList.SetItems(nil)
	a.entryList.Select(0)
	a.searchInput.Reset()
	a.searchInput.Blur()
	a.view = ViewEntries

	if item.favorites {
		a.controller.SetTarget(query.FavoritesTarget())
		return
	}
	a.controller.SetTarget(query.BucketTarget(item.bucket.ID))
}

func (a *App) selectedEntry() *storage.Entry {
	if i, ok := a.entryList.SelectedItem().(entryItem); ok {
		return i.entry
	}
	return nil
}

func (a *App) View() string {
	var content string

	switch a.view {
	case ViewBuckets:
		if len(a.buckets) == 0 {
			content = renderCentered(a.width, a.height-3, GetWelcomeMessage())
		} else {
			content = a.bucketList.View()
		}
	case ViewEntries:
		content = a.entriesView()
	case ViewPreview:
		content = a.viewport.View()
	case ViewExport:
		content = a.exportView()
	case ViewDeleteConfirm:
		content = a.deleteConfirmView()
	}

	statusBar := a.getCustomStatusBar()
	if statusBar == "" {
		return content
	}
	separator := lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(strings.Repeat("─", max(1, a.width-1)))

	return lipgloss.JoinVertical(lipgloss.Top, content, separator, statusBar)
}

func (a *App) entriesView() string {
	q := a.controller.Query()

	subtitle := a.kindTabs(q.Kind) + " • " + MsgPage(q.Page, a.current.TotalPages)
	if a.controller.Pending() {
		subtitle += " • …"
	}

	rows := []string{
		renderHeader("› "+a.target.name(), subtitle, a.width),
		renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
		a.renderChips(q.Domain),
	}
	if a.current.Loaded && len(a.current.Entries) == 0 {
		rows = append(rows, renderMuted(MsgNoEntries))
	} else {
		rows = append(rows, a.entryList.View())
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height - 3).
		MaxHeight(a.height - 3).
		Render(lipgloss.JoinVertical(lipgloss.Top, rows...))
}

func (a *App) kindTabs(active storage.ContentKind) string {
	tabs := []struct {
		kind  storage.ContentKind
		count int
	}{
		{storage.KindText, a.current.Counts.Text},
		{storage.KindImage, a.current.Counts.Image},
	}
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%s (%d)", t.kind, t.count)
		if t.kind == active {
			parts[i] = HeaderStyle.Render(label)
		} else {
			parts[i] = label
		}
	}
	return strings.Join(parts, " │ ")
}

// renderChips lists the bucket's source domains, each with its icon marker.
func (a *App) renderChips(active string) string {
	if len(a.current.Sources) == 0 {
		return ""
	}
	var b strings.Builder
	used := 0
	for _, s := range a.current.Sources {
		label := fmt.Sprintf("%s %s %d", a.iconMarker(s.Domain), s.Domain, s.Count)
		chip := ChipStyle.Render(label)
		if s.Domain == active {
			chip = ActiveChipStyle.Render(label)
		}
		w := lipgloss.Width(chip) + 1
		if a.width > 0 && used+w > a.width-1 {
			b.WriteString(renderMuted("…"))
			break
		}
		b.WriteString(chip + " ")
		used += w
	}
	return b.String()
}

func (a *App) iconMarker(domain string) string {
	if r, ok := a.icons[domain]; ok && !r.Failed() {
		return lipgloss.NewStyle().Foreground(SecondaryColor).Render("◉")
	}
	b := favicon.BadgeFor(domain)
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color(b.Color)).
		Render(b.Glyph)
}

func (a *App) exportView() string {
	s := a.exportStatus
	rows := []string{
		TitleStyle.Render("› export " + a.target.name()),
		"",
		renderInputFrame(a.destInput.View(), a.destInput.Focused(), a.destInput.Width),
		"",
	}
	if s.State != export.StateIdle {
		rows = append(rows, a.progress.View(), renderMuted(s.State.String()))
	}
	if s.State == export.StateDone {
		rows = append(rows, renderMuted(truncateMiddle(s.Path, a.width-4)))
	}
	rows = append(rows, "", renderHelp(a.exportHelp()))

	return renderCentered(a.width, a.height-3, lipgloss.JoinVertical(lipgloss.Center, rows...))
}

func (a *App) exportHelp() string {
	if a.exportStatus.State == export.StateRunning {
		return "Esc: cancel export"
	}
	return "Enter: export • Esc: back"
}

func (a *App) deleteConfirmView() string {
	if a.pending == nil {
		return ""
	}

	modalWidth := (a.width * 4) / 5
	if modalWidth < 20 {
		modalWidth = max(15, a.width-4)
	}

	var title, subject, note string
	switch a.pending.kind {
	case deleteEntry:
		title = "⚠ Delete Entry"
		subject = entryItem{entry: a.pending.entry}.preview()
		note = "This entry will be removed permanently."
	case deleteDomain:
		title = "⚠ Delete Source"
		subject = a.pending.domain
		note = "Every entry in this bucket copied from this site is removed."
	case clearBucket:
		title = "⚠ Clear Bucket"
		subject = a.pending.bucket.Name
		note = "This removes all of the bucket's entries."
	}

	line := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center)
	return renderCentered(a.width, a.height-3, lipgloss.JoinVertical(
		lipgloss.Center,
		lipgloss.NewStyle().Foreground(ErrorColor).Bold(true).Render(title),
		"",
		line.Foreground(FavoriteColor).Bold(true).Render(truncateEnd(subject, modalWidth-4)),
		"",
		line.Foreground(MutedColor).Render(note),
		"",
		"",
		renderHelp("Enter: confirm • Esc: cancel"),
	))
}

func (a *App) getCustomStatusBar() string {
	commands := a.keyHandler.GetHelpForCurrentView()
	bar := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(MutedColor)

	if a.err != nil {
		return bar.Render(StatusErrorStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	}

	parts := make([]string, 0, 2)
	if a.status != "" {
		parts = append(parts, a.statusKind.style()+" "+a.status)
	}
	if len(commands) > 0 {
		parts = append(parts, strings.Join(commands, " • "))
	}
	if len(parts) == 0 {
		return ""
	}
	return bar.Render(strings.Join(parts, "  "))
}

type bucketItem struct {
	bucket    *storage.Bucket
	favorites bool
}

func (i bucketItem) name() string {
	if i.favorites {
		return "favorites"
	}
	if i.bucket == nil {
		return ""
	}
	return i.bucket.Name
}

func (i bucketItem) Title() string {
	if i.favorites {
		return FavoriteItemStyle.Render("★ favorites")
	}
	if i.bucket.IsFavorite {
		return FavoriteItemStyle.Render("★ " + i.bucket.Name)
	}
	return i.bucket.Name
}

func (i bucketItem) Description() string {
	if i.favorites {
		return renderMuted("starred entries and entries of starred buckets")
	}
	return renderMuted(fmt.Sprintf("%d entries • %s", i.bucket.EntryCount, truncateMiddle(i.bucket.ExePath, 60)))
}

func (i bucketItem) FilterValue() string { return i.name() }

type entryItem struct {
	entry  *storage.Entry
	domain string
	// image is nil until the page's images are loaded, or if loading failed
	image *library.Image
}

// preview is the single-line form of the entry. Sensitive text stays masked.
func (i entryItem) preview() string {
	e := i.entry
	switch {
	case e.Kind == storage.KindImage && i.image != nil:
		return fmt.Sprintf("▣ %s %d×%d %s", strings.ToUpper(i.image.Format), i.image.Width, i.image.Height, e.ImagePath)
	case e.Kind == storage.KindImage:
		return "▣ " + e.ImagePath
	case e.IsSensitive:
		return "•••••••• (sensitive)"
	default:
		return singleLine(e.TextBody, 80)
	}
}

func (i entryItem) Title() string {
	title := i.preview()
	switch {
	case i.entry.IsFavorite:
		return FavoriteItemStyle.Render("★ " + title)
	case i.entry.IsSensitive:
		return SensitiveItemStyle.Render(title)
	default:
		return title
	}
}

func (i entryItem) Description() string {
	desc := TimeStyle.Render(i.entry.CreatedAt)
	if i.domain != "" {
		desc += renderMuted(" • " + i.domain)
	}
	return desc
}

func (i entryItem) FilterValue() string { return i.entry.TextBody }

type bucketsLoadedMsg struct {
	buckets []*storage.Bucket
}

type refreshMsg struct{}

type storeChangedMsg struct {
	changes <-chan struct{}
}

type faviconMsg struct {
	domain string
	result favicon.Result
}

type imagesLoadedMsg struct {
	handles []string
	images  map[string]*library.Image
}

type previewRenderedMsg struct {
	content string
}

type bucketClearedMsg struct {
	name    string
	removed int
}

type statusMsg struct {
	text string
	kind StatusKind
}

type errorMsg struct {
	err error
}
