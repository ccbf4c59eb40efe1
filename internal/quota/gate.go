package quota

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDailyLimit is the number of chargeable actions a user gets per day.
const DefaultDailyLimit = 25

// Limiter decides whether a user may perform a chargeable action.
type Limiter interface {
	// Allow reports whether the action is permitted and, if so, charges it.
	Allow(ctx context.Context, userID string) bool
	// Usage reports today's consumption without charging anything.
	Usage(ctx context.Context, userID string) Usage
}

// Config holds the gate settings.
type Config struct {
	// DailyLimit is the number of actions allowed per calendar day.
	DailyLimit int
	// PrivilegedUserID is never limited and never touches the store.
	PrivilegedUserID string
	// Timeout bounds every store call. Zero means no bound.
	Timeout time.Duration
	// Location decides where the calendar day starts. Defaults to time.Local.
	Location *time.Location
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Usage is a read-only snapshot of a user's quota for today.
type Usage struct {
	Used      int
	Remaining int
	Limit     int
	Unlimited bool
}

// Gate enforces a per-user daily quota backed by a Store.
type Gate struct {
	store  Store
	cfg    Config
	logger *zap.Logger

	// mu serialises load, mutate and save. The document is shared by every
	// user, so a per-user lock would still lose updates across users.
	mu sync.Mutex
}

var _ Limiter = (*Gate)(nil)

// NewGate creates a new daily quota gate.
func NewGate(store Store, cfg Config, logger *zap.Logger) *Gate {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = DefaultDailyLimit
	}

	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Gate{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Limit returns the configured daily limit.
func (g *Gate) Limit() int {
	return g.cfg.DailyLimit
}

// IsPrivileged reports whether userID bypasses the quota.
func (g *Gate) IsPrivileged(userID string) bool {
	return g.cfg.PrivilegedUserID != "" && userID == g.cfg.PrivilegedUserID
}

// Allow charges one action to userID if today's quota is not exhausted.
func (g *Gate) Allow(ctx context.Context, userID string) bool {
	if g.IsPrivileged(userID) {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	doc := g.load(ctx, userID)
	today := g.today()

	stored, found := doc[userID]

	count, _ := Effective(stored, found, today)
	if count >= g.cfg.DailyLimit {
		g.logger.Debug("daily limit reached",
			zap.String("user_id", userID),
			zap.Int("count", count),
			zap.Int("limit", g.cfg.DailyLimit),
		)

		return false
	}

	doc[userID] = Record{Count: count + 1, Date: today}

	g.save(ctx, userID, doc)

	return true
}

// Usage returns today's consumption for userID. It never writes to the store.
func (g *Gate) Usage(ctx context.Context, userID string) Usage {
	if g.IsPrivileged(userID) {
		return Usage{Limit: g.cfg.DailyLimit, Unlimited: true}
	}

	doc := g.load(ctx, userID)
	stored, found := doc[userID]

	used, _ := Effective(stored, found, g.today())

	return Usage{
		Used:      used,
		Remaining: max(g.cfg.DailyLimit-used, 0),
		Limit:     g.cfg.DailyLimit,
	}
}

// load fetches the document. Any store failure is treated as "no history",
// which lets the user through rather than blocking them.
func (g *Gate) load(ctx context.Context, userID string) Document {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	doc, err := g.store.Load(ctx)
	if err != nil {
		g.logger.Warn("quota load failed, treating as empty",
			zap.String("user_id", userID),
			zap.Error(err),
		)

		return Document{}
	}

	if doc == nil {
		return Document{}
	}

	return doc
}

// save persists the document. A failed write is logged and dropped.
func (g *Gate) save(ctx context.Context, userID string, doc Document) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	if err := g.store.Save(ctx, doc); err != nil {
		g.logger.Warn("quota save failed, grant not persisted",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (g *Gate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, g.cfg.Timeout)
}

func (g *Gate) today() string {
	return g.cfg.Now().In(g.cfg.Location).Format(DateLayout)
}
