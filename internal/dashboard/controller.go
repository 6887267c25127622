// Package dashboard holds the client-side state behind the dashboard and
// history views: the user's transactions and categories, kept in sync with
// the session and re-listed after every successful change.
package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"solconta/internal/calendar"
	"solconta/internal/client"
	"solconta/internal/logger"
	"solconta/internal/metrics"
	"solconta/internal/models"
	"solconta/internal/session"
)

// Store is the backend the controller reads and writes through.
type Store interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in models.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, in models.CategoryInput) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

const (
	msgLoadFailed   = "Error al cargar las transacciones"
	msgSaveFailed   = "Error al guardar la transacción"
	msgDeleteFailed = "Error al eliminar la transacción"
	msgCategoryType = "La categoría no corresponde al tipo de movimiento."
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLocation sets the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

// OnChange registers fn to run after every state change.
func OnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller is the page state. Fetch completion is the only path that
// replaces the transaction and category lists.
type Controller struct {
	store    Store
	cell     *session.Cell
	now      func() time.Time
	loc      *time.Location
	onChange func()

	mu           sync.RWMutex
	transactions []models.Transaction
	categories   []models.Category
	loading      bool
	err          string

	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a controller reading from store for the user signed in on
// cell.
func New(store Store, cell *session.Cell, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		cell:         cell,
		now:          time.Now,
		loc:          time.Local,
		transactions: []models.Transaction{},
		categories:   []models.Category{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start follows the session. Nothing is fetched until the persisted session
// has been restored. After that every session event that carries a session
// triggers a re-fetch, later restorations included, and signing out clears
// the state.
func (c *Controller) Start(ctx context.Context) error {
	c.unsubscribe = c.cell.Subscribe(func(event session.Event, s *session.Session) {
		switch {
		case event == session.EventInitialSession && c.cell.Restorations() == 1:
			// The first restoration is fetched below by Start itself.
		case event == session.EventSignedOut || s == nil:
			c.clear()
		default:
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.Refresh(ctx)
			}()
		}
	})

	if err := c.cell.WaitRestored(ctx); err != nil {
		return err
	}
	if c.cell.Current() != nil {
		c.Refresh(ctx)
	}
	return nil
}

// Stop unsubscribes from the session and waits for in-flight fetches.
func (c *Controller) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.wg.Wait()
}

// Wait blocks until fetches started by session events have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) clear() {
	c.mu.Lock()
	c.transactions = []models.Transaction{}
	c.categories = []models.Category{}
	c.loading = false
	c.err = ""
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Refresh lists transactions and categories and replaces the state with the
// result. Overlapping refreshes are not serialized: whichever resolves last
// wins, even if it was issued first.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	txs, err := c.store.ListTransactions(ctx)
	var categories []models.Category
	if err == nil {
		categories, err = c.store.ListCategories(ctx)
	}

	c.mu.Lock()
	c.loading = false
	if err != nil {
		logger.Get().Warnw("dashboard fetch failed", "error", err)
		c.err = fetchError(err)
	} else {
		c.transactions = txs
		c.categories = categories
		c.err = ""
	}
	c.mu.Unlock()
	c.changed()
}

func fetchError(err error) string {
	res := client.Fail(err)
	if res.Error == "" || res.Error == err.Error() {
		return msgLoadFailed
	}
	return res.Error
}

// mutationError turns a failed store call into the inline form message.
func mutationError(err error, fallback string) client.OpResult {
	res := client.Fail(err)
	if res.Error == err.Error() {
		res.Error = fallback
	}
	return res
}

// Error is the page-level fetch error, empty when the last fetch succeeded.
func (c *Controller) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Loading reports whether a fetch is in flight.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Transactions returns a copy of the listed transactions, newest first.
func (c *Controller) Transactions() []models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Transaction(nil), c.transactions...)
}

// Categories returns a copy of the listed categories.
func (c *Controller) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Category(nil), c.categories...)
}

// CategoriesFor returns the categories selectable for a transaction of
// type t.
func (c *Controller) CategoriesFor(t models.TransactionType) []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if string(cat.Type) == string(t) {
			out = append(out, cat)
		}
	}
	return out
}

// Recent returns the n newest transactions.
func (c *Controller) Recent(n int) []models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n = max(0, min(n, len(c.transactions)))
	return append([]models.Transaction(nil), c.transactions[:n]...)
}

// Today is the current calendar day in the controller's location.
func (c *Controller) Today() calendar.Date {
	return calendar.FromTime(c.now().In(c.loc))
}

// Metrics recomputes the dashboard figures from the current state.
func (c *Controller) Metrics() metrics.Dashboard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return metrics.Compute(c.transactions, c.now().In(c.loc))
}

// checkCategory rejects a listed category of the other type. Unknown ids
// are left for the server to judge.
func (c *Controller) checkCategory(in models.TransactionInput) error {
	if in.CategoryID == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cat := range c.categories {
		if cat.ID == *in.CategoryID && string(cat.Type) != string(in.Type) {
			return &models.ValidationError{Field: "category_id", Message: msgCategoryType}
		}
	}
	return nil
}

func (c *Controller) prepare(in *models.TransactionInput) error {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return err
	}
	return c.checkCategory(*in)
}

// AddTransaction validates in, inserts it and re-lists on success.
func (c *Controller) AddTransaction(ctx context.Context, in models.TransactionInput) client.OpResult {
	if err := c.prepare(&in); err != nil {
		return client.Fail(err)
	}
	if _, err := c.store.CreateTransaction(ctx, in); err != nil {
		return mutationError(err, msgSaveFailed)
	}
	c.Refresh(ctx)
	return client.Ok()
}

// EditTransaction validates in, replaces transaction id with it and
// re-lists on success.
func (c *Controller) EditTransaction(ctx context.Context, id string, in models.TransactionInput) client.OpResult {
	if err := c.prepare(&in); err != nil {
		return client.Fail(err)
	}
	if _, err := c.store.UpdateTransaction(ctx, id, in); err != nil {
		return mutationError(err, msgSaveFailed)
	}
	c.Refresh(ctx)
	return client.Ok()
}

// DeleteTransaction removes transaction id and re-lists on success.
func (c *Controller) DeleteTransaction(ctx context.Context, id string) client.OpResult {
	if err := c.store.DeleteTransaction(ctx, id); err != nil {
		return mutationError(err, msgDeleteFailed)
	}
	c.Refresh(ctx)
	return client.Ok()
}

// CreateCategory validates in, creates the category and re-lists on
// success.
func (c *Controller) CreateCategory(ctx context.Context, in models.CategoryInput) client.OpResult {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return client.Fail(err)
	}
	if _, err := c.store.CreateCategory(ctx, in); err != nil {
		return mutationError(err, "Error al crear categoría")
	}
	c.Refresh(ctx)
	return client.Ok()
}

// DeleteCategory removes category id. Transactions that used it become
// uncategorized.
func (c *Controller) DeleteCategory(ctx context.Context, id string) client.OpResult {
	if err := c.store.DeleteCategory(ctx, id); err != nil {
		return mutationError(err, "Error al eliminar la categoría")
	}
	c.Refresh(ctx)
	return client.Ok()
}

// Filter narrows the history view. Zero fields do not filter.
type Filter struct {
	Type       models.TransactionType
	Search     string
	From       calendar.Date
	To         calendar.Date
	CategoryID string
}

func (f Filter) match(tx *models.Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(tx.Description), strings.ToLower(strings.TrimSpace(f.Search))) {
		return false
	}
	if !f.From.IsZero() && tx.TransactionDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.TransactionDate.After(f.To) {
		return false
	}
	if f.CategoryID != "" && (tx.CategoryID == nil || *tx.CategoryID != f.CategoryID) {
		return false
	}
	return true
}

// History is the filtered transaction list with its subtotals.
type History struct {
	Transactions []models.Transaction
	Totals       metrics.BalanceSummary
}

// History applies f to the listed transactions.
func (c *Controller) History(f Filter) History {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := make([]models.Transaction, 0, len(c.transactions))
	for i := range c.transactions {
		if f.match(&c.transactions[i]) {
			rows = append(rows, c.transactions[i])
		}
	}
	return History{Transactions: rows, Totals: metrics.Balance(rows)}
}
