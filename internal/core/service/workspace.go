package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/pkg/metrics"
)

const idleSweepInterval = time.Minute

// Workspace owns one InvoiceStore per signed-in user and ties the stores to
// the session lifecycle of the Authenticator.
type Workspace struct {
	auth ports.Authenticator
	docs ports.DocumentStore
	opts StoreOptions
	log  zerolog.Logger
	now  func() time.Time
	idle time.Duration

	mu        sync.Mutex
	stores    map[string]*workspaceEntry
	lastSweep time.Time
}

type workspaceEntry struct {
	store    *InvoiceStore
	lastUsed time.Time
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithIdleTimeout detaches stores whose user has not been resolved for d.
// Sessions that expire without a logout would otherwise keep their store
// for the life of the process. Zero disables eviction.
func WithIdleTimeout(d time.Duration) WorkspaceOption {
	return func(w *Workspace) { w.idle = d }
}

func NewWorkspace(auth ports.Authenticator, docs ports.DocumentStore, opts StoreOptions, options ...WorkspaceOption) *Workspace {
	w := &Workspace{
		auth:   auth,
		docs:   docs,
		opts:   opts,
		log:    opts.Logger,
		now:    opts.Clock,
		stores: make(map[string]*workspaceEntry),
	}
	if w.now == nil {
		w.now = time.Now
	}
	for _, o := range options {
		o(w)
	}
	return w
}

// Resolve returns the loaded store of the user behind token.
func (w *Workspace) Resolve(ctx context.Context, token string) (*InvoiceStore, error) {
	user, err := w.auth.CurrentSession(ctx, token)
	if err != nil || user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return w.open(ctx, user)
}

// Login replaces the caller's current session, if any, with a new one.
func (w *Workspace) Login(ctx context.Context, previousToken, email, password string) (*domain.Session, error) {
	w.dropPrevious(ctx, previousToken)
	sess, err := w.auth.CreateSession(ctx, email, password)
	if err != nil {
		return nil, err
	}
	w.warmUp(ctx, sess.User)
	return sess, nil
}

// Signup creates an account and signs it in, replacing the caller's current
// session, if any.
func (w *Workspace) Signup(ctx context.Context, previousToken, name, email, password string) (*domain.Session, error) {
	w.dropPrevious(ctx, previousToken)
	if _, err := w.auth.CreateAccount(ctx, name, email, password); err != nil {
		return nil, err
	}
	sess, err := w.auth.CreateSession(ctx, email, password)
	if err != nil {
		return nil, err
	}
	w.warmUp(ctx, sess.User)
	return sess, nil
}

// Logout destroys the session behind token and detaches its user's store.
func (w *Workspace) Logout(ctx context.Context, token string) error {
	user, _ := w.auth.CurrentSession(ctx, token)
	if err := w.auth.DestroySession(ctx, token); err != nil {
		return err
	}
	if user != nil {
		w.detach(ctx, user.ID)
	}
	return nil
}

// dropPrevious ends the session behind token. Failures are logged, not returned.
func (w *Workspace) dropPrevious(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := w.auth.DestroySession(ctx, token); err != nil {
		w.log.Warn().Err(err).Msg("failed to destroy previous session")
	}
}

// Len reports the number of open stores.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stores)
}

func (w *Workspace) open(ctx context.Context, user *domain.User) (*InvoiceStore, error) {
	store := w.storeFor(ctx, user.ID)
	if err := store.SetUser(ctx, user); err != nil {
		return nil, err
	}
	if !store.Loaded() {
		if err := store.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// warmUp loads the store right after sign-in. A failure is retried by the
// next Resolve.
func (w *Workspace) warmUp(ctx context.Context, user *domain.User) {
	if user == nil {
		return
	}
	if _, err := w.open(ctx, user); err != nil {
		w.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to load invoices after sign-in")
	}
}

func (w *Workspace) storeFor(ctx context.Context, userID string) *InvoiceStore {
	now := w.now()

	w.mu.Lock()
	idle := w.takeIdle(now, userID)
	entry, ok := w.stores[userID]
	if !ok {
		entry = &workspaceEntry{store: NewInvoiceStore(w.docs, w.opts)}
		w.stores[userID] = entry
		metrics.ActiveStores.Inc()
	}
	entry.lastUsed = now
	w.mu.Unlock()

	for id, store := range idle {
		w.log.Info().Str("user_id", id).Msg("detaching idle invoice store")
		w.release(ctx, store)
	}
	return entry.store
}

// takeIdle removes and returns the stores, other than keep's, that have not
// been used within the idle timeout. Callers must hold mu.
func (w *Workspace) takeIdle(now time.Time, keep string) map[string]*InvoiceStore {
	if w.idle <= 0 || now.Sub(w.lastSweep) < idleSweepInterval {
		return nil
	}
	w.lastSweep = now

	var idle map[string]*InvoiceStore
	for id, entry := range w.stores {
		if id == keep || now.Sub(entry.lastUsed) < w.idle {
			continue
		}
		if idle == nil {
			idle = make(map[string]*InvoiceStore)
		}
		idle[id] = entry.store
		delete(w.stores, id)
	}
	return idle
}

func (w *Workspace) detach(ctx context.Context, userID string) {
	w.mu.Lock()
	entry, ok := w.stores[userID]
	delete(w.stores, userID)
	w.mu.Unlock()
	if !ok {
		return
	}
	w.release(ctx, entry.store)
}

func (w *Workspace) release(ctx context.Context, store *InvoiceStore) {
	_ = store.SetUser(ctx, nil)
	metrics.ActiveStores.Dec()
}
