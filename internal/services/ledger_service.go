package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"khata/internal/amqp"
	"khata/internal/balance"
	"khata/internal/cache"
	"khata/internal/core"
	"khata/internal/ledger"
	klog "khata/internal/log"
	"khata/internal/storage"
)

// ErrClosed is returned by operations submitted after Close.
var ErrClosed = errors.New("ledger service closed")

// Publisher hands propagation requests to the worker.
type Publisher interface {
	PublishPropagation(ctx context.Context, req *amqp.PropagationRequest) error
}

type Options struct {
	Attachments      ledger.ArtifactRemover
	Categorizer      *core.Categorizer
	Publisher        Publisher // optional
	Logger           *klog.Logger
	BalanceCacheSize int // 0 disables the balance cache
	BalanceCacheTTL  time.Duration
}

// Outcome is what one committed unit of work did.
type Outcome struct {
	Changes      []ledger.Change
	PartyID      int64
	Propagations []balance.Result
}

// LedgerEntryID is the ledger entry touched by a single-entry operation.
func (o Outcome) LedgerEntryID() int64 {
	if len(o.Changes) == 0 {
		return 0
	}
	return o.Changes[0].LedgerEntryID
}

// CashEntryID is the cash book entry touched by a single-entry operation.
func (o Outcome) CashEntryID() int64 {
	if len(o.Changes) == 0 {
		return 0
	}
	return o.Changes[0].CashEntryID
}

// PropagatedFrom lists the anchors of every cascade the operation ran.
func (o Outcome) PropagatedFrom() []core.Date {
	out := make([]core.Date, 0, len(o.Propagations))
	for _, r := range o.Propagations {
		out = append(out, r.Anchor)
	}
	return out
}

// ChangeEvent is published to subscribers after a unit of work commits.
type ChangeEvent struct {
	Op      string
	PartyID int64
	Dates   []core.Date
	At      time.Time
}

// PropagationOutcome is delivered by RepropagateAsync.
type PropagationOutcome struct {
	Result balance.Result
	Err    error
}

type txFunc func(ctx context.Context, tx *storage.Tx) (Outcome, error)

type job struct {
	ctx   context.Context
	op    string
	fn    txFunc
	reply chan jobResult
}

type jobResult struct {
	out Outcome
	err error
}

type cachedBalance struct {
	b  core.DailyBalance
	ok bool
}

// LedgerService is the single entry point for writes. Every mutating call
// is one unit of work: store writes, mirror sync and balance propagation run
// in one SQLite transaction, on one writer goroutine, one call at a time.
// Reads go straight to the pool and only see committed state.
type LedgerService struct {
	repo        *storage.SQLiteRepository
	engine      *ledger.Engine
	propagator  *balance.Propagator
	categorizer *core.Categorizer
	publisher   Publisher
	log         *klog.StructuredLogger
	today       func() core.Date

	jobs      chan job
	stop      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	cacheMu  sync.Mutex
	cacheGen uint64
	balances cache.Cache[core.Date, cachedBalance]
	cacheMgr *cache.Manager

	subsMu  sync.Mutex
	subs    map[int]chan ChangeEvent
	nextSub int
}

func NewLedgerService(repo *storage.SQLiteRepository, opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = klog.New(klog.Config{Handler: slog.Default().Handler()})
	}
	categorizer := opts.Categorizer
	if categorizer == nil {
		categorizer = core.DefaultCategorizer()
	}

	s := &LedgerService{
		repo:        repo,
		engine:      ledger.NewEngine(opts.Attachments),
		propagator:  balance.NewPropagator(),
		categorizer: categorizer,
		publisher:   opts.Publisher,
		log:         klog.NewStructuredLogger(logger.WithComponent(klog.ComponentLedger)),
		today:       core.Today,
		jobs:        make(chan job),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		subs:        make(map[int]chan ChangeEvent),
	}

	if opts.BalanceCacheSize > 0 {
		ttl := opts.BalanceCacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		lru := cache.NewLRUCache[core.Date, cachedBalance](opts.BalanceCacheSize, ttl)
		s.balances = lru
		s.cacheMgr = cache.NewManager()
		s.cacheMgr.Register(lru)
		s.cacheMgr.StartCleanup(ttl)
	}

	go s.run()
	return s
}

func (s *LedgerService) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.jobs:
			out, err := s.execute(j)
			j.reply <- jobResult{out: out, err: err}
		case <-s.stop:
			return
		}
	}
}

func (s *LedgerService) execute(j job) (Outcome, error) {
	started := time.Now()
	var out Outcome
	err := s.repo.InTx(j.ctx, func(tx *storage.Tx) error {
		var err error
		out, err = j.fn(j.ctx, tx)
		return err
	})

	fields := klog.NewFields()
	if out.PartyID != 0 {
		fields.WithParty(out.PartyID, "")
	}
	if id := out.LedgerEntryID(); id != 0 {
		fields[klog.FieldEntryID] = id
	}
	s.log.LogOperation(j.ctx, j.op, started, err, fields)

	var perr *balance.PropagationError
	if errors.As(err, &perr) {
		s.log.LogPropagation(j.ctx, perr.Anchor.String(), perr.LastWritten.String(), 0, err)
	}
	if err != nil {
		return Outcome{}, err
	}

	for _, r := range out.Propagations {
		if r.Written > 0 {
			s.log.LogPropagation(j.ctx, r.Anchor.String(), r.LastWritten.String(), r.Visited, nil)
		}
	}
	s.afterCommit(j.op, out)
	return out, nil
}

// submit queues fn on the writer and waits for its commit.
func (s *LedgerService) submit(ctx context.Context, op string, fn txFunc) (Outcome, error) {
	if s.closed.Load() {
		return Outcome{}, ErrClosed
	}
	j := job{ctx: ctx, op: op, fn: fn, reply: make(chan jobResult, 1)}
	select {
	case s.jobs <- j:
	case <-s.stop:
		return Outcome{}, ErrClosed
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	r := <-j.reply
	return r.out, r.err
}

func (s *LedgerService) afterCommit(op string, out Outcome) {
	var dates []core.Date
	for _, r := range out.Propagations {
		dates = append(dates, r.Anchor)
	}
	for _, c := range out.Changes {
		dates = append(dates, c.Dirty...)
	}
	if earliest := core.MinDate(dates...); !earliest.IsZero() {
		s.invalidateFrom(earliest)
	}
	s.publish(ChangeEvent{Op: op, PartyID: out.PartyID, Dates: dates, At: time.Now()})
}

// propagate runs one cascade per dirty date inside tx.
func (s *LedgerService) propagate(ctx context.Context, tx *storage.Tx, out *Outcome, dates ...core.Date) error {
	results, err := s.propagator.PropagateDates(ctx, tx, dates...)
	out.Propagations = append(out.Propagations, results...)
	return err
}

func (s *LedgerService) propagateChanges(ctx context.Context, tx *storage.Tx, out *Outcome) error {
	var dates []core.Date
	for _, c := range out.Changes {
		dates = append(dates, c.Dirty...)
	}
	return s.propagate(ctx, tx, out, dates...)
}

// TransactionInput is a receipt, payment or purchase against a party.
type TransactionInput struct {
	PartyID        int64
	Amount         core.Money
	Date           core.Date
	Channel        core.PaymentChannel
	Note           string
	AttachmentPath string
}

func (in TransactionInput) entry(kind core.LedgerEntryKind) core.PartyLedgerEntry {
	return core.PartyLedgerEntry{
		PartyID:        in.PartyID,
		Kind:           kind,
		Amount:         in.Amount,
		Date:           in.Date,
		Note:           in.Note,
		Channel:        in.Channel,
		AttachmentPath: in.AttachmentPath,
	}
}

// AddReceipt records money received from a party.
func (s *LedgerService) AddReceipt(ctx context.Context, in TransactionInput) (Outcome, error) {
	return s.record(ctx, "add_receipt", in.entry(core.KindDebit))
}

// AddPayment records money paid to a party.
func (s *LedgerService) AddPayment(ctx context.Context, in TransactionInput) (Outcome, error) {
	return s.record(ctx, "add_payment", in.entry(core.KindCredit))
}

// AddPurchase records goods bought from a party. It moves no cash; the
// channel defaults to CREDIT.
func (s *LedgerService) AddPurchase(ctx context.Context, in TransactionInput) (Outcome, error) {
	if in.Channel == "" {
		in.Channel = core.ChannelCredit
	}
	return s.record(ctx, "add_purchase", in.entry(core.KindPurchase))
}

func (s *LedgerService) record(ctx context.Context, op string, e core.PartyLedgerEntry) (Outcome, error) {
	if err := e.Validate(); err != nil {
		return Outcome{}, err
	}
	return s.submit(ctx, op, func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		out := Outcome{PartyID: e.PartyID}
		ch, err := s.engine.RecordReceiptOrPayment(ctx, tx, e)
		if err != nil {
			return out, err
		}
		out.Changes = append(out.Changes, ch)
		return out, s.propagateChanges(ctx, tx, &out)
	})
}

// EditTransaction rewrites a ledger entry. A new date moves the entry and
// propagates from both dates.
func (s *LedgerService) EditTransaction(ctx context.Context, id int64, p ledger.Patch) (Outcome, error) {
	return s.submit(ctx, "edit_transaction", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		return s.editTransaction(ctx, tx, id, p)
	})
}

func (s *LedgerService) editTransaction(ctx context.Context, tx *storage.Tx, id int64, p ledger.Patch) (Outcome, error) {
	var out Outcome
	ch, err := s.engine.UpdateWithSync(ctx, tx, id, p)
	if err != nil {
		return out, err
	}
	e, err := tx.GetLedgerEntry(ctx, id)
	if err != nil {
		return out, err
	}
	out.PartyID = e.PartyID
	out.Changes = append(out.Changes, ch)
	return out, s.propagateChanges(ctx, tx, &out)
}

// DeleteTransaction removes a ledger entry with its mirror.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) (Outcome, error) {
	return s.submit(ctx, "delete_transaction", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		return s.deleteTransaction(ctx, tx, id)
	})
}

func (s *LedgerService) deleteTransaction(ctx context.Context, tx *storage.Tx, id int64) (Outcome, error) {
	var out Outcome
	e, err := tx.GetLedgerEntry(ctx, id)
	if err != nil {
		return out, err
	}
	out.PartyID = e.PartyID
	ch, err := s.engine.DeleteWithSync(ctx, tx, id)
	if err != nil {
		return out, err
	}
	out.Changes = append(out.Changes, ch)
	return out, s.propagateChanges(ctx, tx, &out)
}

// BulkRecord records many entries in one unit of work and propagates once,
// from the earliest date imported.
func (s *LedgerService) BulkRecord(ctx context.Context, entries []core.PartyLedgerEntry) (Outcome, error) {
	if len(entries) == 0 {
		return Outcome{}, nil
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return Outcome{}, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return s.submit(ctx, "bulk_record", func(ctx context.Context, tx *storage.Tx) (Outcome, error) {
		var (
			out   Outcome
			dates []core.Date
		)
		for i, e := range entries {
			ch, err := s.engine.RecordReceiptOrPayment(ctx, tx, e)
			if err != nil {
				return out, fmt.Errorf("row %d: %w", i+1, err)
			}
			out.Changes = append(out.Changes, ch)
			dates = append(dates, ch.Dirty...)
		}
		res, err := s.propagator.PropagateForward(ctx, tx, core.MinDate(dates...))
		out.Propagations = append(out.Propagations, res)
		return out, err
	})
}
