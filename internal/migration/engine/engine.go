// Package engine drives the staged live migration: chunked resumable
// backfill, consistency validation, and the gated cutover that flips a table
// to canonical-only writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"studbook/internal/audit"
	"studbook/internal/migration/adapter"
	migrationmetrics "studbook/internal/migration/metrics"
	"studbook/internal/migration/models"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/platform/sentinel"
)

// Backfill row outcome labels.
const (
	outcomeLinked        = "linked"
	outcomeMinted        = "minted"
	outcomeAlreadyLinked = "already_linked"
	outcomeNoReference   = "no_reference"
	outcomeUnresolvable  = "unresolvable"
)

// Engine coordinates the migration of the registered referencing tables.
type Engine struct {
	stages      StageStore
	checkpoints CheckpointStore
	parties     PartyMinter

	adapters     map[string]adapter.TableAdapter
	workers      int
	operatorHash string

	audit   *audit.Recorder
	metrics *migrationmetrics.Metrics
	log     *log.Logger
	tracer  trace.Tracer
}

// Option configures optional engine dependencies.
type Option func(*Engine)

// WithAudit attaches the operator-review recorder.
func WithAudit(r *audit.Recorder) Option {
	return func(e *Engine) { e.audit = r }
}

// WithMetrics attaches the migration metrics set.
func WithMetrics(m *migrationmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithWorkers sets how many disjoint PK windows a backfill runs concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithOperatorTokenHash sets the bcrypt hash the cutover token is checked
// against. Without it every cutover is refused.
func WithOperatorTokenHash(hash string) Option {
	return func(e *Engine) { e.operatorHash = hash }
}

// New constructs the migration engine. Tables are attached with Register.
func New(stages StageStore, checkpoints CheckpointStore, parties PartyMinter, opts ...Option) *Engine {
	e := &Engine{
		stages:      stages,
		checkpoints: checkpoints,
		parties:     parties,
		adapters:    make(map[string]adapter.TableAdapter),
		workers:     1,
		tracer:      otel.Tracer("studbook/migration"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a referencing table to the engine.
func (e *Engine) Register(a adapter.TableAdapter) {
	e.adapters[a.Table()] = a
}

// Tables returns the registered table names.
func (e *Engine) Tables() []string {
	out := make([]string, 0, len(e.adapters))
	for table := range e.adapters {
		out = append(out, table)
	}
	return out
}

func (e *Engine) adapterFor(table string) (adapter.TableAdapter, error) {
	a, ok := e.adapters[table]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "table is not registered for migration")
	}
	return a, nil
}

// RunBackfill links every row of the table to its canonical id, chunk by
// chunk. Progress is checkpointed after each chunk, so a cancelled run
// resumes past completed chunks; already-linked rows are no-ops, so
// re-running a completed window changes nothing. Rows whose legacy reference
// does not resolve are counted and left untouched.
func (e *Engine) RunBackfill(ctx context.Context, table string, chunkSize int) (models.BackfillReport, error) {
	a, err := e.adapterFor(table)
	if err != nil {
		return models.BackfillReport{}, err
	}
	if chunkSize <= 0 {
		return models.BackfillReport{}, dErrors.New(dErrors.CodeInvalidInput, "chunk size must be positive")
	}
	stage, err := e.stages.GetStage(ctx, table)
	if err != nil {
		return models.BackfillReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "read migration stage")
	}
	if stage == models.StagePartyOnly {
		return models.BackfillReport{}, dErrors.New(dErrors.CodeBadRequest, "table has already cut over")
	}

	maxPK, err := a.MaxPK(ctx)
	if err != nil {
		return models.BackfillReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "determine table bounds")
	}

	start := time.Now()
	e.audit.Record(ctx, audit.Event{Kind: audit.KindBackfillStarted, Table: table})
	if e.log != nil {
		e.log.Printf("backfill %s: starting, max pk %d, %d worker(s)", table, maxPK, e.workers)
	}

	report := models.BackfillReport{Table: table}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, window := range splitWindows(maxPK, e.workers) {
		key := checkpointKey(table, i, e.workers)
		window := window
		g.Go(func() error {
			windowReport, err := e.backfillWindow(gctx, a, key, window, chunkSize)
			mu.Lock()
			report.Merge(windowReport)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		// Checkpoints stay behind so the next run resumes here.
		return report, fmt.Errorf("backfill %s: %w", table, err)
	}

	for i := range e.workers {
		if err := e.checkpoints.Clear(ctx, checkpointKey(table, i, e.workers)); err != nil && e.log != nil {
			e.log.Printf("backfill %s: clear checkpoint: %v", table, err)
		}
	}

	report.Duration = time.Since(start)
	e.audit.Record(ctx, audit.Event{
		Kind:   audit.KindBackfillCompleted,
		Table:  table,
		Count:  report.RowsLinked,
		Detail: fmt.Sprintf("scanned %d, linked %d, minted %d, unresolvable %d", report.RowsScanned, report.RowsLinked, report.PartiesMinted, report.Unresolvable),
	})
	if e.log != nil {
		e.log.Printf("backfill %s: done in %s, scanned %d, linked %d, minted %d, unresolvable %d",
			table, report.Duration, report.RowsScanned, report.RowsLinked, report.PartiesMinted, report.Unresolvable)
	}
	return report, nil
}

// pkWindow is a half-open PK range (lo, hi].
type pkWindow struct {
	lo, hi int64
}

func splitWindows(maxPK int64, workers int) []pkWindow {
	if workers <= 1 || maxPK < int64(workers) {
		return []pkWindow{{0, maxPK}}
	}
	size := maxPK / int64(workers)
	out := make([]pkWindow, 0, workers)
	lo := int64(0)
	for i := 0; i < workers; i++ {
		hi := lo + size
		if i == workers-1 {
			hi = maxPK
		}
		out = append(out, pkWindow{lo, hi})
		lo = hi
	}
	return out
}

func checkpointKey(table string, window, workers int) string {
	if workers <= 1 {
		return table
	}
	return table + "#" + strconv.Itoa(window)
}

func (e *Engine) backfillWindow(ctx context.Context, a adapter.TableAdapter, key string, window pkWindow, chunkSize int) (models.BackfillReport, error) {
	report := models.BackfillReport{Table: a.Table()}

	after := window.lo
	if checkpointed, found, err := e.checkpoints.Load(ctx, key); err != nil {
		return report, fmt.Errorf("load checkpoint %s: %w", key, err)
	} else if found && checkpointed > after {
		after = checkpointed
		report.Resumed = true
	}

	for {
		// Cooperative cancellation between chunks only; a chunk in flight
		// finishes and checkpoints before the window stops.
		if err := ctx.Err(); err != nil {
			return report, err
		}
		processed, lastPK, err := e.backfillChunk(ctx, a, after, window.hi, chunkSize, &report)
		if err != nil {
			return report, err
		}
		if processed == 0 {
			return report, nil
		}
		after = lastPK
		if err := e.checkpoints.Save(ctx, key, after); err != nil {
			return report, fmt.Errorf("save checkpoint %s: %w", key, err)
		}
		report.Chunks++
	}
}

func (e *Engine) backfillChunk(ctx context.Context, a adapter.TableAdapter, afterPK, upToPK int64, chunkSize int, report *models.BackfillReport) (int, int64, error) {
	table := a.Table()
	ctx, span := e.tracer.Start(ctx, "migration.backfill.chunk", trace.WithAttributes(
		attribute.String("table", table),
		attribute.Int64("after_pk", afterPK),
	))
	defer span.End()
	start := time.Now()
	defer e.metrics.ObserveChunk(table, start)

	rows, err := a.ListChunk(ctx, afterPK, upToPK, chunkSize)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}

	for _, row := range rows {
		report.RowsScanned++
		switch {
		case !row.PartyID.IsNil():
			e.metrics.RecordBackfillRow(table, outcomeAlreadyLinked)
		case row.Legacy.IsEmpty():
			e.metrics.RecordBackfillRow(table, outcomeNoReference)
		default:
			partyID, minted, err := e.parties.EnsureParty(ctx, row.Legacy)
			if err != nil {
				return 0, 0, fmt.Errorf("resolve row %d: %w", row.PK, err)
			}
			if partyID.IsNil() {
				report.Unresolvable++
				e.metrics.RecordBackfillRow(table, outcomeUnresolvable)
				continue
			}
			if err := a.SetPartyID(ctx, row.PK, partyID); err != nil {
				return 0, 0, fmt.Errorf("link row %d: %w", row.PK, err)
			}
			report.RowsLinked++
			e.metrics.RecordBackfillRow(table, outcomeLinked)
			if minted {
				report.PartiesMinted++
				e.metrics.RecordBackfillRow(table, outcomeMinted)
			}
		}
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	return len(rows), rows[len(rows)-1].PK, nil
}

// ValidateConsistency counts rows whose stored canonical id disagrees with
// the id their legacy columns derive to. The result is persisted; cutover is
// gated on the latest persisted result being clean.
func (e *Engine) ValidateConsistency(ctx context.Context, table string) (models.ValidationReport, error) {
	a, err := e.adapterFor(table)
	if err != nil {
		return models.ValidationReport{}, err
	}

	ctx, span := e.tracer.Start(ctx, "migration.validate", trace.WithAttributes(attribute.String("table", table)))
	defer span.End()

	checked, disagreements, err := a.CountDisagreements(ctx)
	if err != nil {
		return models.ValidationReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "count disagreements")
	}
	report := models.ValidationReport{
		Table:         table,
		RowsChecked:   checked,
		Disagreements: disagreements,
		CheckedAt:     time.Now().UTC(),
	}
	if err := e.stages.RecordValidation(ctx, report); err != nil {
		return models.ValidationReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "record validation")
	}
	e.metrics.SetValidationDisagreements(table, disagreements)
	e.audit.Record(ctx, audit.Event{
		Kind:   audit.KindValidationCompleted,
		Table:  table,
		Count:  disagreements,
		Detail: fmt.Sprintf("checked %d rows", checked),
	})
	if e.log != nil {
		e.log.Printf("validate %s: %d rows checked, %d disagreements", table, checked, disagreements)
	}
	return report, nil
}

// AdvanceToDualWrite moves a legacy-only table into dual-write.
func (e *Engine) AdvanceToDualWrite(ctx context.Context, table string) error {
	if _, err := e.adapterFor(table); err != nil {
		return err
	}
	stage, err := e.stages.GetStage(ctx, table)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read migration stage")
	}
	if !stage.CanAdvanceTo(models.StageDualWrite) {
		return dErrors.New(dErrors.CodeConflict, "table is not in the legacy-only stage")
	}
	if err := e.stages.SetStage(ctx, table, models.StageDualWrite); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set migration stage")
	}
	return nil
}

// Cutover flips a dual-write table to canonical-only writes. Refused unless
// the operator token matches and the latest persisted validation of the
// table found zero disagreements. Legacy input fields remain accepted and
// translated after cutover; they are just never stored again. Dropping the
// legacy columns afterwards is an operator task outside this engine.
func (e *Engine) Cutover(ctx context.Context, table, operatorToken string) error {
	if _, err := e.adapterFor(table); err != nil {
		return err
	}

	if e.operatorHash == "" || bcrypt.CompareHashAndPassword([]byte(e.operatorHash), []byte(operatorToken)) != nil {
		e.metrics.RecordCutover(table, "unauthorized")
		return dErrors.New(dErrors.CodeUnauthorized, "operator token rejected")
	}

	stage, err := e.stages.GetStage(ctx, table)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read migration stage")
	}
	if !stage.CanAdvanceTo(models.StagePartyOnly) {
		e.recordBlocked(ctx, table, "table is not in the dual-write stage")
		return dErrors.NewWithReason(dErrors.CodeCutoverBlocked, "STAGE_NOT_DUAL_WRITE", "table is not in the dual-write stage")
	}

	validation, err := e.stages.LatestValidation(ctx, table)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			e.recordBlocked(ctx, table, "table has never been validated")
			return dErrors.NewWithReason(dErrors.CodeCutoverBlocked, "VALIDATION_MISSING", "table has never been validated")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "read latest validation")
	}
	if !validation.Clean() {
		detail := fmt.Sprintf("latest validation found %d disagreements", validation.Disagreements)
		e.recordBlocked(ctx, table, detail)
		return dErrors.NewWithReason(dErrors.CodeCutoverBlocked, "VALIDATION_DISAGREEMENTS", detail)
	}

	if err := e.stages.SetStage(ctx, table, models.StagePartyOnly); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set migration stage")
	}
	e.metrics.RecordCutover(table, "applied")
	e.audit.Record(ctx, audit.Event{Kind: audit.KindCutoverApplied, Table: table})
	if e.log != nil {
		e.log.Printf("cutover %s: applied", table)
	}
	return nil
}

func (e *Engine) recordBlocked(ctx context.Context, table, detail string) {
	e.metrics.RecordCutover(table, "blocked")
	e.audit.Record(ctx, audit.Event{Kind: audit.KindCutoverBlocked, Table: table, Detail: detail})
	if e.log != nil {
		e.log.Printf("cutover %s: blocked: %s", table, detail)
	}
}
