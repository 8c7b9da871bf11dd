package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/postboard/internal/controller"
	"github.com/abelbrown/postboard/internal/store"
)

// AppConfig holds the hooks the App uses to reach the controller.
//
// Refresh and LoadMore must not block; they report whether a fetch started.
// ToggleFavorite runs as a command because it notifies observers, and a
// notification sent from inside Update would block the program.
type AppConfig struct {
	Refresh        func() bool
	LoadMore       func() bool
	ToggleFavorite func(id int64, favorite bool) tea.Cmd
	// Initial is the list shown before the first notification arrives.
	Initial controller.Snapshot
	// CachedAt is when the mirror was last replaced, shown while the list
	// came from the mirror.
	CachedAt time.Time
	Now      func() time.Time
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the controller. It receives posts via messages.
type App struct {
	refresh        func() bool
	loadMore       func() bool
	toggleFavorite func(id int64, favorite bool) tea.Cmd
	now            func() time.Time

	posts      []store.Post
	page       int
	totalPages int
	cached     bool
	cachedAt   time.Time

	cursor  int
	toast   string
	detail  *Detail
	spinner spinner.Model
	width   int
	height  int
	ready   bool
	loading bool
}

var keys = struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Home     key.Binding
	End      key.Binding
	Open     key.Binding
	Back     key.Binding
	Refresh  key.Binding
	Favorite key.Binding
}{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Up:       key.NewBinding(key.WithKeys("up", "k")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	Home:     key.NewBinding(key.WithKeys("home", "g")),
	End:      key.NewBinding(key.WithKeys("end", "G")),
	Open:     key.NewBinding(key.WithKeys("enter")),
	Back:     key.NewBinding(key.WithKeys("esc", "backspace")),
	Refresh:  key.NewBinding(key.WithKeys("r")),
	Favorite: key.NewBinding(key.WithKeys("f")),
}

// NewApp creates a new App with the given commands.
func NewApp(cfg AppConfig) App {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StatusBarKey

	return App{
		refresh:        cfg.Refresh,
		loadMore:       cfg.LoadMore,
		toggleFavorite: cfg.ToggleFavorite,
		now:            cfg.Now,
		cachedAt:       cfg.CachedAt,
		posts:          cfg.Initial.Posts,
		page:           max(cfg.Initial.Page, 1),
		totalPages:     cfg.Initial.TotalPages,
		cached:         cfg.Initial.Cached,
		loading:        cfg.Initial.Loading,
		spinner:        s,
	}
}

// Init starts the spinner if a fetch is already running.
func (a App) Init() tea.Cmd {
	if a.loading {
		return a.spinner.Tick
	}
	return nil
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		if a.detail != nil {
			d := *a.detail
			d.SetSize(a.width, a.height)
			a.detail = &d
		}
		return a, nil

	case PostsChanged:
		a.posts = msg.Snap.Posts
		a.page = msg.Snap.Page
		a.totalPages = msg.Snap.TotalPages
		a.cached = msg.Snap.Cached
		a.loading = msg.Snap.Loading
		if a.cursor >= len(a.posts) {
			a.cursor = max(len(a.posts)-1, 0)
		}
		if a.detail != nil {
			if p, ok := a.findPost(a.detail.Post().ID); ok {
				d := *a.detail
				d.SetFavorite(p.Favorite)
				a.detail = &d
			}
		}
		return a, nil

	case FetchFailed:
		a.loading = false
		a.toast = msg.Message
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key dismisses the toast
	if a.toast != "" {
		a.toast = ""
	}

	if key.Matches(msg, keys.Quit) && (msg.String() == "ctrl+c" || a.detail == nil) {
		return a, tea.Quit
	}

	if a.detail != nil {
		return a.handleDetailKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Down):
		if a.cursor < len(a.posts)-1 {
			a.cursor++
		}
		return a, a.maybeLoadMore()

	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Home):
		a.cursor = 0
		return a, nil

	case key.Matches(msg, keys.End):
		if len(a.posts) > 0 {
			a.cursor = len(a.posts) - 1
		}
		return a, a.maybeLoadMore()

	case key.Matches(msg, keys.Open):
		if a.cursor < len(a.posts) {
			d := NewDetail(a.posts[a.cursor], a.width, a.height)
			a.detail = &d
		}
		return a, nil

	case key.Matches(msg, keys.Refresh):
		if a.refresh == nil || a.loading {
			return a, nil
		}
		return a, a.started(a.refresh())
	}

	return a, nil
}

// handleDetailKey processes keyboard input while the detail sheet is open.
func (a App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		a.detail = nil
		return a, nil

	case key.Matches(msg, keys.Favorite):
		d := *a.detail
		p := d.Post()
		d.SetFavorite(!p.Favorite)
		a.detail = &d
		if a.toggleFavorite != nil {
			return a, a.toggleFavorite(p.ID, !p.Favorite)
		}
		return a, nil
	}

	d, cmd := a.detail.Update(msg)
	a.detail = &d
	return a, cmd
}

// maybeLoadMore requests the next page when the cursor sits on the last row.
func (a *App) maybeLoadMore() tea.Cmd {
	if a.loadMore == nil || a.loading || len(a.posts) == 0 || a.cursor != len(a.posts)-1 {
		return nil
	}
	if a.totalPages > 0 && a.page >= a.totalPages && !a.cached {
		return nil
	}
	return a.started(a.loadMore())
}

// started shows the spinner row when a fetch was accepted.
func (a *App) started(ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	a.loading = true
	return a.spinner.Tick
}

func (a App) findPost(id int64) (store.Post, bool) {
	for _, p := range a.posts {
		if p.ID == id {
			return p, true
		}
	}
	return store.Post{}, false
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.detail != nil {
		return a.detail.View()
	}

	// Header, status bar and optional toast take one line each
	contentHeight := a.height - 2
	if a.toast != "" {
		contentHeight--
	}

	header := Header.Render("Posts") + "\n"
	list := RenderList(a.posts, a.cursor, a.width, contentHeight, a.loading, a.spinner.View())

	toast := ""
	if a.toast != "" {
		toast = ErrorStyle.Width(a.width).Render(a.toast+" (press any key to dismiss)") + "\n"
	}

	cachedAge := ""
	if a.cached && !a.cachedAt.IsZero() {
		cachedAge = formatAgeShort(a.now().Sub(a.cachedAt))
	}
	statusBar := RenderStatusBar(a.cursor, len(a.posts), a.page, a.totalPages, a.width, cachedAge)

	return header + list + toast + statusBar
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Posts returns the current posts (for testing).
func (a App) Posts() []store.Post {
	return a.posts
}

// Toast returns the message currently shown, if any.
func (a App) Toast() string {
	return a.toast
}

// Loading reports whether the spinner row is shown.
func (a App) Loading() bool {
	return a.loading
}

// DetailOpen reports whether the detail sheet is shown.
func (a App) DetailOpen() bool {
	return a.detail != nil
}
