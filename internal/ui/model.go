package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moradology/kleis/internal/cart"
	"github.com/moradology/kleis/internal/catalog"
	"github.com/moradology/kleis/internal/logtail"
	"github.com/moradology/kleis/internal/prefs"
)

const (
	activityLines       = 12
	defaultActivityTick = 2 * time.Second
)

// Options configure the cart screen.
type Options struct {
	Context  context.Context
	Hook     *CartHook
	Products catalog.ProductFetcher // nil disables adding by slug
	// RefreshStock fetches live stock for the cart and applies it. Nil
	// disables the refresh key.
	RefreshStock func(ctx context.Context) error
	LogPath      string // activity pane source; empty disables it
	PrefsPath    string
	Prefs        prefs.Prefs
	ActivityTick time.Duration
}

type inputMode int

const (
	modeBrowse inputMode = iota
	modeEditQuantity
	modeAddProduct
	modeConfirmClear
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

// Model is the Bubble Tea model for the cart screen.
type Model struct {
	ctx          context.Context
	hook         *CartHook
	products     catalog.ProductFetcher
	refreshStock func(ctx context.Context) error
	logPath      string
	prefsPath    string
	activityTick time.Duration

	keys   keyMap
	help   help.Model
	input  textinput.Model
	theme  Theme
	styles Styles

	width    int
	height   int
	selected int
	mode     inputMode
	editID   string

	status     string
	statusKind statusKind

	showHelp     bool
	showActivity bool
	activity     []logtail.Entry
}

// New creates the cart screen model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	hook := opts.Hook
	if hook == nil {
		hook = NewCartHook(nil)
	}
	tick := opts.ActivityTick
	if tick <= 0 {
		tick = defaultActivityTick
	}

	input := textinput.New()
	input.CharLimit = 64
	input.Prompt = "> "

	theme := GetTheme(opts.Prefs.Theme)
	return Model{
		ctx:          ctx,
		hook:         hook,
		products:     opts.Products,
		refreshStock: opts.RefreshStock,
		logPath:      opts.LogPath,
		prefsPath:    opts.PrefsPath,
		activityTick: tick,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		input:        input,
		theme:        theme,
		styles:       theme.Styles(),
		showActivity: opts.Prefs.ShowActivity && opts.LogPath != "",
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.hook.WaitForChange()}
	if m.showActivity {
		cmds = append(cmds, loadActivityCmd(m.logPath), activityTickCmd(m.activityTick))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.mode != modeBrowse {
			return m.handlePromptKey(msg)
		}
		return m.handleKey(msg)

	case CartChangedMsg:
		m.clampSelection()
		cmds := []tea.Cmd{m.hook.WaitForChange()}
		if m.showActivity {
			cmds = append(cmds, loadActivityCmd(m.logPath))
		}
		return m, tea.Batch(cmds...)

	case productAddedMsg:
		m.handleProductAdded(msg)
		return m, nil

	case stockRefreshedMsg:
		if msg.err != nil {
			m.setStatus(statusError, "Stock refresh failed: %v", msg.err)
		} else {
			m.setStatus(statusOK, "Stock refreshed")
		}
		return m, nil

	case activityMsg:
		if msg.err == nil {
			m.activity = msg.entries
		}
		return m, nil

	case activityTickMsg:
		if !m.showActivity {
			return m, nil
		}
		return m, tea.Batch(loadActivityCmd(m.logPath), activityTickCmd(m.activityTick))
	}

	return m, nil
}

// handleKey processes keys while browsing the cart.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.hook.Items()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(items)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Top):
		m.selected = 0

	case key.Matches(msg, m.keys.Bottom):
		m.selected = max(len(items)-1, 0)

	case key.Matches(msg, m.keys.Increase):
		if it, ok := m.selectedItem(); ok {
			if !m.hook.UpdateItemQuantity(it.ID, it.Quantity+1) {
				m.setStatus(statusWarn, "Only %d of %s in stock", it.Stock, it.Name)
			} else {
				m.clearStatus()
			}
		}

	case key.Matches(msg, m.keys.Decrease):
		if it, ok := m.selectedItem(); ok {
			if m.hook.UpdateItemQuantity(it.ID, it.Quantity-1) && it.Quantity == 1 {
				m.setStatus(statusInfo, "Removed %s", it.Name)
			} else {
				m.clearStatus()
			}
		}

	case key.Matches(msg, m.keys.Remove):
		if it, ok := m.selectedItem(); ok && m.hook.RemoveFromCart(it.ID) {
			m.setStatus(statusInfo, "Removed %s", it.Name)
		}

	case key.Matches(msg, m.keys.Edit):
		if it, ok := m.selectedItem(); ok {
			m.editID = it.ID
			return m, m.openPrompt(modeEditQuantity, "quantity", fmt.Sprint(it.Quantity))
		}

	case key.Matches(msg, m.keys.Add):
		if m.products == nil {
			m.setStatus(statusWarn, "Catalog unavailable")
			return m, nil
		}
		return m, m.openPrompt(modeAddProduct, "product-slug or product-slug@SKU", "")

	case key.Matches(msg, m.keys.Clear):
		if len(items) > 0 {
			m.mode = modeConfirmClear
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.refreshStock == nil {
			m.setStatus(statusWarn, "Stock refresh unavailable")
			return m, nil
		}
		m.setStatus(statusInfo, "Refreshing stock…")
		return m, refreshStockCmd(m.ctx, m.refreshStock)

	case key.Matches(msg, m.keys.Activity):
		if m.logPath == "" {
			m.setStatus(statusWarn, "Logging to stderr, no activity to show")
			return m, nil
		}
		m.showActivity = !m.showActivity
		m.savePrefs()
		if m.showActivity {
			return m, tea.Batch(loadActivityCmd(m.logPath), activityTickCmd(m.activityTick))
		}

	case key.Matches(msg, m.keys.Theme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.styles = m.theme.Styles()
		m.savePrefs()
	}

	return m, nil
}

// handlePromptKey processes keys while a prompt is open.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeConfirmClear {
		switch strings.ToLower(msg.String()) {
		case "y", "enter":
			if m.hook.ClearCart() {
				m.setStatus(statusInfo, "Cart cleared")
			}
		}
		m.mode = modeBrowse
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closePrompt()
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.closePrompt()
		switch mode {
		case modeEditQuantity:
			m.applyQuantity(value)
			return m, nil
		case modeAddProduct:
			if value == "" {
				return m, nil
			}
			m.setStatus(statusInfo, "Looking up %s…", value)
			return m, addProductCmd(m.ctx, m.products, m.hook, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applyQuantity(value string) {
	qty, ok := cart.ParseQuantity(value)
	if !ok {
		m.setStatus(statusError, "%q is not a quantity", value)
		return
	}
	it, found := m.hook.GetItemByID(m.editID)
	if !found {
		return
	}
	m.hook.UpdateItemQuantity(it.ID, qty)
	switch {
	case qty == 0:
		m.setStatus(statusInfo, "Removed %s", it.Name)
	case qty > it.Stock:
		m.setStatus(statusWarn, "Only %d of %s in stock", it.Stock, it.Name)
	default:
		m.clearStatus()
	}
}

func (m *Model) handleProductAdded(msg productAddedMsg) {
	switch {
	case errors.Is(msg.err, catalog.ErrNotFound):
		m.setStatus(statusError, "No product %q", msg.query)
	case msg.err != nil:
		m.setStatus(statusError, "Add failed: %v", msg.err)
	case msg.noVariant:
		m.setStatus(statusWarn, "%s is out of stock", msg.name)
	default:
		switch msg.outcome {
		case cart.AddInserted:
			m.setStatus(statusOK, "Added %s", msg.name)
		case cart.AddIncremented:
			m.setStatus(statusOK, "Added another %s", msg.name)
		case cart.AddUnchanged:
			m.setStatus(statusWarn, "No more %s in stock", msg.name)
		case cart.AddCartFull:
			m.setStatus(statusWarn, "Cart is full (%d items)", cart.MaxItems)
		default:
			m.setStatus(statusWarn, "%s is out of stock", msg.name)
		}
	}
}

func (m *Model) openPrompt(mode inputMode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.mode = modeBrowse
	m.editID = ""
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, ShowActivity: m.showActivity}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.setStatus(statusWarn, "Could not save preferences: %v", err)
	}
}

func (m *Model) selectedItem() (cart.LineItem, bool) {
	items := m.hook.Items()
	if m.selected < 0 || m.selected >= len(items) {
		return cart.LineItem{}, false
	}
	return items[m.selected], true
}

func (m *Model) clampSelection() {
	n := len(m.hook.Items())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) setStatus(kind statusKind, format string, args ...any) {
	m.statusKind = kind
	m.status = fmt.Sprintf(format, args...)
}

func (m *Model) clearStatus() {
	m.status = ""
}

// Messages

type productAddedMsg struct {
	query     string
	name      string
	outcome   cart.AddOutcome
	noVariant bool
	err       error
}

type stockRefreshedMsg struct{ err error }

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

type activityTickMsg time.Time

// Commands

func addProductCmd(ctx context.Context, products catalog.ProductFetcher, hook *CartHook, query string) tea.Cmd {
	return func() tea.Msg {
		slug, sku, _ := strings.Cut(query, "@")
		product, err := products.FetchProduct(ctx, slug)
		if err != nil {
			return productAddedMsg{query: query, err: err}
		}

		var (
			variant catalog.Variant
			ok      bool
		)
		if sku != "" {
			variant, ok = product.Variant(sku)
			if !ok {
				return productAddedMsg{query: query, err: fmt.Errorf("%s has no variant %s", product.Name, sku)}
			}
			ok = variant.Stock > 0
		} else {
			variant, ok = product.FirstInStock()
		}
		if !ok {
			return productAddedMsg{query: query, name: product.Name, noVariant: true}
		}

		details := product.Details(variant)
		return productAddedMsg{
			query:   query,
			name:    displayName(details.Name, details.Variant),
			outcome: hook.AddToCart(details, 1),
		}
	}
}

func refreshStockCmd(ctx context.Context, refresh func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return stockRefreshedMsg{err: refresh(ctx)}
	}
}

func loadActivityCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.Tail(path, activityLines)
		return activityMsg{entries: entries, err: err}
	}
}

func activityTickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return activityTickMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Hook == nil {
		return fmt.Errorf("ui requires a cart hook")
	}
	opts.Context = ctx
	stop := opts.Hook.Listen()
	defer stop()

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
