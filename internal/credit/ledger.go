// Package credit keeps each session's balance of AFK credit minutes.
//
// Balances are earned while a session is active, spent one minute per tick
// while it is AFK, and expire after a long period without earning. All
// mutations of one account are serialized on that account's lock; writes to
// the store happen on the scheduler and never block the caller.
package credit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

const persistTimeout = 5 * time.Second

// States reports the AFK state owned by the state machine.
type States interface {
	IsAFK(id domain.SessionID) bool
}

type KindCounter interface {
	DistinctKinds(id domain.SessionID, since time.Time) int
}

type Deps struct {
	Store ports.CreditStore
	// Transactions is nil when the backend keeps no history.
	Transactions ports.TransactionLog
	Permissions  ports.PermissionResolver
	Scorer       ports.ActivityScorer
	Kinds        KindCounter
	States       States
	Sink         ports.SessionSink
	Notifier     ports.Notifier
	World        ports.WorldProbe
	Scheduler    ports.Scheduler
	Bus          *hooks.Bus
	Clock        ports.Clock
	Log          logr.Logger
	// OnExhausted runs after a consuming session hits a zero balance, with
	// whether it could be relocated.
	OnExhausted func(id domain.SessionID, relocated bool)
}

type Ledger struct {
	mu       sync.RWMutex
	accounts map[domain.SessionID]*entry
	cfg      Config

	store    ports.CreditStore
	txlog    ports.TransactionLog
	perms    ports.PermissionResolver
	scorer   ports.ActivityScorer
	kinds    KindCounter
	states   States
	sink     ports.SessionSink
	notifier ports.Notifier
	world    ports.WorldProbe
	sched    ports.Scheduler
	bus      *hooks.Bus
	clock    ports.Clock
	log      logr.Logger

	onExhausted func(id domain.SessionID, relocated bool)
}

type entry struct {
	mu      sync.Mutex
	acct    domain.CreditAccount
	pending float64
	online  bool
	stop    ports.CancelFunc
	outbox  []domain.Transaction

	version uint64
	saved   uint64
}

func NewLedger(cfg Config, deps Deps) *Ledger {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Bus == nil {
		deps.Bus = hooks.NewBus()
	}
	return &Ledger{
		accounts: map[domain.SessionID]*entry{},
		cfg:      normalize(cfg),
		store:    deps.Store,
		txlog:    deps.Transactions,
		perms:    deps.Permissions,
		scorer:   deps.Scorer,
		kinds:    deps.Kinds,
		states:   deps.States,
		sink:     deps.Sink,
		notifier: deps.Notifier,
		world:    deps.World,
		sched:    deps.Scheduler,
		bus:      deps.Bus,
		clock:    deps.Clock,
		log:      deps.Log,

		onExhausted: deps.OnExhausted,
	}
}

// SetExhaustedHandler replaces the OnExhausted callback. It is meant for
// wiring before the ledger is started.
func (l *Ledger) SetExhaustedHandler(fn func(id domain.SessionID, relocated bool)) {
	l.mu.Lock()
	l.onExhausted = fn
	l.mu.Unlock()
}

// Reconfigure swaps the settings and trims balances above a lowered tier max.
func (l *Ledger) Reconfigure(cfg Config) {
	l.mu.Lock()
	l.cfg = normalize(cfg)
	l.mu.Unlock()
	for _, e := range l.entries() {
		l.enforceMax(e)
	}
}

func (l *Ledger) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Load reads every stored account. On failure the ledger keeps running from
// memory and the error is returned for the caller to log.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	accounts, err := l.store.LoadAll(ctx)
	if err != nil {
		l.log.Error(err, "load credit accounts, continuing in memory")
		return err
	}

	loaded := make([]*entry, 0, len(accounts))
	l.mu.Lock()
	for id, acct := range accounts {
		if _, ok := l.accounts[id]; ok {
			continue
		}
		acct.SessionID = id
		acct.Consuming = false
		acct.LowBalanceWarnedAt = -1
		e := &entry{acct: acct}
		l.accounts[id] = e
		loaded = append(loaded, e)
	}
	l.mu.Unlock()

	for _, e := range loaded {
		l.enforceMax(e)
	}
	l.log.Info("credit accounts loaded", "count", len(accounts))
	return nil
}

func (l *Ledger) Join(id domain.SessionID) {
	e := l.entry(id, true)
	e.mu.Lock()
	e.online = true
	e.mu.Unlock()
	l.enforceMax(e)
}

// Leave stops consumption and saves the account.
func (l *Ledger) Leave(id domain.SessionID) {
	e := l.entry(id, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	l.stopLocked(e)
	e.online = false
	e.mu.Unlock()
	l.persist(id)
}

func (l *Ledger) Balance(id domain.SessionID) int {
	e := l.entry(id, false)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.BalanceMinutes
}

func (l *Ledger) MaxBalance(id domain.SessionID) int {
	cfg := l.Config()
	return cfg.tier(l.tierOf(id, cfg)).MaxBalance
}

// Tier resolves the session's tier from its permissions.
func (l *Ledger) Tier(id domain.SessionID) domain.Tier {
	return l.tierOf(id, l.Config())
}

func (l *Ledger) Account(id domain.SessionID) (domain.CreditAccount, bool) {
	e := l.entry(id, false)
	if e == nil {
		return domain.CreditAccount{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Clone(), true
}

// Accounts returns every known account ordered by session id.
func (l *Ledger) Accounts() []domain.CreditAccount {
	entries := l.entries()
	out := make([]domain.CreditAccount, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.acct.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (l *Ledger) InZone(id domain.SessionID) bool {
	e := l.entry(id, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.InZone
}

func (l *Ledger) Consuming(id domain.SessionID) bool {
	e := l.entry(id, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct.Consuming
}

// History returns the newest transactions first.
func (l *Ledger) History(ctx context.Context, id domain.SessionID, limit int) ([]domain.Transaction, error) {
	if l.txlog == nil {
		return nil, domain.ErrHistoryUnsupported
	}
	return l.txlog.History(ctx, id, limit)
}

// Flush saves every account changed since its last successful save.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.save(ctx, false)
}

// Shutdown stops all consumption timers and saves every account.
func (l *Ledger) Shutdown(ctx context.Context) error {
	for _, e := range l.entries() {
		e.mu.Lock()
		l.stopLocked(e)
		e.mu.Unlock()
	}
	return l.save(ctx, true)
}

func (l *Ledger) save(ctx context.Context, all bool) error {
	if l.store == nil {
		return nil
	}

	now := l.clock.Now()
	batch := map[domain.SessionID]domain.CreditAccount{}
	versions := map[*entry]uint64{}
	for _, e := range l.entries() {
		e.mu.Lock()
		if all || e.version != e.saved {
			e.acct.UpdatedAt = now
			batch[e.acct.SessionID] = e.acct.Clone()
			versions[e] = e.version
		}
		e.mu.Unlock()
	}
	if len(batch) == 0 {
		return nil
	}

	if err := l.store.SaveAll(ctx, batch); err != nil {
		l.log.Error(err, "save credit accounts", "count", len(batch))
		return err
	}
	for e, v := range versions {
		e.mu.Lock()
		if v > e.saved {
			e.saved = v
		}
		e.mu.Unlock()
	}
	l.log.V(1).Info("credit accounts saved", "count", len(batch))
	return nil
}

// persist saves one account in the background. A failed save leaves the
// account dirty for the next flush.
func (l *Ledger) persist(id domain.SessionID) {
	if l.store == nil {
		return
	}
	e := l.entry(id, false)
	if e == nil {
		return
	}

	l.async("persist:"+string(id), func() {
		e.mu.Lock()
		e.acct.UpdatedAt = l.clock.Now()
		acct := e.acct.Clone()
		version := e.version
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := l.store.SaveOne(ctx, acct); err != nil {
			l.log.Error(err, "save credit account", "session", id)
			return
		}

		e.mu.Lock()
		if version > e.saved {
			e.saved = version
		}
		e.mu.Unlock()
	})
}

// record queues a transaction for the history backend, if any. Callers hold
// e.mu and call commit once they release it.
func (l *Ledger) record(cfg Config, e *entry, kind domain.TransactionType, amount, balance int, note string) {
	if !cfg.RecordHistory || l.txlog == nil {
		return
	}
	e.outbox = append(e.outbox, domain.Transaction{
		ID:            uuid.NewString(),
		SessionID:     e.acct.SessionID,
		Type:          kind,
		AmountMinutes: amount,
		BalanceAfter:  balance,
		At:            l.clock.Now(),
		Note:          note,
	})
}

// commit ships queued transactions and saves the account in the background.
// It must not be called with e.mu held.
func (l *Ledger) commit(e *entry) {
	e.mu.Lock()
	id := e.acct.SessionID
	outbox := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	for _, tx := range outbox {
		tx := tx
		l.async("persist:"+string(id), func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := l.txlog.RecordTransaction(ctx, tx); err != nil {
				l.log.Error(err, "record credit transaction", "session", id, "type", tx.Type)
			}
		})
	}
	l.persist(id)
}

func (l *Ledger) async(key string, task func()) {
	if l.sched == nil {
		task()
		return
	}
	l.sched.RunNow(key, task)
}

// enforceMax trims the balance to the session's current tier max and saves
// the account when that changed it.
func (l *Ledger) enforceMax(e *entry) {
	cfg := l.Config()
	e.mu.Lock()
	capped := l.capLocked(cfg, e)
	e.mu.Unlock()
	if capped {
		l.commit(e)
	}
}

// capLocked is enforceMax for callers that hold e.mu. They commit afterwards
// when it reports true.
func (l *Ledger) capLocked(cfg Config, e *entry) bool {
	id := e.acct.SessionID
	limit := cfg.tier(l.tierOf(id, cfg)).MaxBalance
	before := e.acct.BalanceMinutes
	after := domain.ClampBalance(before, limit)
	if after == before {
		return false
	}
	e.acct.BalanceMinutes = after
	e.touch()
	l.record(cfg, e, domain.TxCap, after-before, after, "tier max")
	l.log.Info("credits capped at tier max", "session", id, "before", before, "after", after)
	return true
}

// touch marks the entry changed. Callers hold e.mu.
func (e *entry) touch() {
	e.version++
}

func (l *Ledger) notify(id domain.SessionID, message string) {
	if l.notifier != nil && message != "" {
		l.notifier.Notify(id, message)
	}
}

func (l *Ledger) entry(id domain.SessionID, create bool) *entry {
	l.mu.RLock()
	e, ok := l.accounts[id]
	l.mu.RUnlock()
	if ok || !create {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.accounts[id]; ok {
		return e
	}
	e = &entry{acct: domain.NewCreditAccount(id)}
	l.accounts[id] = e
	return e
}

func (l *Ledger) entries() []*entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*entry, 0, len(l.accounts))
	for _, e := range l.accounts {
		out = append(out, e)
	}
	return out
}

func (l *Ledger) tierOf(id domain.SessionID, cfg Config) domain.Tier {
	for _, t := range domain.TierPriority {
		tc, ok := cfg.Tiers[t]
		if ok && tc.Permission != "" && l.hasPermission(id, tc.Permission) {
			return t
		}
	}
	return domain.TierDefault
}

func (l *Ledger) hasPermission(id domain.SessionID, permission string) bool {
	return l.perms != nil && l.perms.HasPermission(id, permission)
}
