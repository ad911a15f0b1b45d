package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/stone-stock/internal/domain/materials"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/infra/metrics"
)

var ErrUnauthenticated = slabs.ErrUnauthenticated

const (
	DefaultClearAfter = 3 * time.Second
	DefaultMaxUnits   = 50000
)

// ErrTooManyUnits: файл отклонён целиком, развёрнутых единиц больше предела прогона.
var ErrTooManyUnits = errors.New("trop d'unités dans le fichier")

type SlabStore interface {
	BatchInserter
	ListEntryNumbers(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// LiveFeed: подписка на изменения таблицы slabs; на время импорта глушится
// для импортирующего пользователя, чтобы собственные вставки не вызывали лавину перезагрузок.
type LiveFeed interface {
	Suspend(userID uuid.UUID)
	Resume(userID uuid.UUID)
}

type Reloader interface {
	Reload(ctx context.Context, userID uuid.UUID)
}

type Deps struct {
	Slabs      SlabStore
	Materials  MaterialStore
	Tracker    *Tracker
	Guard      Guard
	Live       LiveFeed
	Reloader   Reloader
	Log        *slog.Logger
	Writer     WriterConfig
	ClearAfter time.Duration
	// MaxUnits: предел суммы «Quantité» за прогон.
	MaxUnits   int
}

type Importer struct {
	slabs      SlabStore
	reconciler *Reconciler
	materials  MaterialStore
	writer     *Writer
	tracker    *Tracker
	guard      Guard
	live       LiveFeed
	reloader   Reloader
	log        *slog.Logger
	clearAfter time.Duration
	maxUnits   int
}

func New(d Deps) *Importer {
	if d.Tracker == nil {
		d.Tracker = NewTracker()
	}
	if d.Guard == nil {
		d.Guard = &LocalGuard{}
	}
	if d.Live == nil {
		d.Live = noopFeed{}
	}
	if d.Reloader == nil {
		d.Reloader = noopFeed{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ClearAfter <= 0 {
		d.ClearAfter = DefaultClearAfter
	}
	if d.MaxUnits <= 0 {
		d.MaxUnits = DefaultMaxUnits
	}
	return &Importer{
		slabs:      d.Slabs,
		reconciler: NewReconciler(d.Materials, d.Log),
		materials:  d.Materials,
		writer:     NewWriter(d.Slabs, d.Writer, d.Log),
		tracker:    d.Tracker,
		guard:      d.Guard,
		live:       d.Live,
		reloader:   d.Reloader,
		log:        d.Log,
		clearAfter: d.ClearAfter,
		maxUnits:   d.MaxUnits,
	}
}

func (im *Importer) Tracker() *Tracker { return im.tracker }

type Result struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Import проводит один прогон: parsing -> checking -> materials -> inserting -> done.
// Возвращаемая ошибка означает фатальный сбой (файл/заголовки/чтение БД);
// всё остальное копится в Result.Errors.
func (im *Importer) Import(ctx context.Context, userID uuid.UUID, data []byte) (Result, error) {
	if userID == uuid.Nil {
		return Result{}, ErrUnauthenticated
	}
	release, err := im.guard.Acquire(ctx)
	if err != nil {
		metrics.ImportRuns.WithLabelValues("busy").Inc()
		return Result{}, err
	}
	defer release()

	im.live.Suspend(userID)
	defer im.live.Resume(userID)

	started := time.Now()
	log := im.log.With("user_id", userID)
	runID := im.tracker.start(userID)
	defer im.tracker.clearAfter(runID, im.clearAfter)

	res, err := im.run(ctx, log, userID, data)
	metrics.ImportDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ImportRuns.WithLabelValues("aborted").Inc()
		im.tracker.update(func(p *Progress) { p.Errors = append(p.Errors, err.Error()) })
		log.Error("import aborted", "err", err)
		return Result{}, err
	}
	return res, nil
}

func (im *Importer) run(ctx context.Context, log *slog.Logger, userID uuid.UUID, data []byte) (Result, error) {
	// parsing
	dec, err := Decode(data)
	if err != nil {
		return Result{}, err
	}
	decodeErrs := formatRowErrors(dec.Errors)
	im.tracker.update(func(p *Progress) { p.TotalLines = dec.Stats.Lines })
	log.Info("import parsed", "lines", dec.Stats.Lines, "valid", dec.Stats.Valid,
		"blank", dec.Stats.Skipped, "invalid", dec.Stats.Invalid)

	if len(dec.Rows) == 0 && len(dec.Errors) > 0 {
		metrics.ImportRuns.WithLabelValues("aborted").Inc()
		metrics.ImportUnits.WithLabelValues("rejected").Add(float64(len(dec.Errors)))
		im.tracker.update(func(p *Progress) { p.Errors = decodeErrs })
		return Result{Errors: decodeErrs}, nil
	}

	// checking
	totalUnits := 0
	for _, r := range dec.Rows {
		totalUnits += r.Quantity
	}
	if totalUnits > im.maxUnits {
		metrics.ImportUnits.WithLabelValues("rejected").Add(float64(totalUnits))
		return Result{}, fmt.Errorf("%w (%d, maximum %d)", ErrTooManyUnits, totalUnits, im.maxUnits)
	}
	im.tracker.update(func(p *Progress) {
		p.Phase = PhaseChecking
		p.TotalUnits = totalUnits
	})

	existing, err := im.slabs.ListEntryNumbers(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("lecture des numéros d'entrée: %w", err)
	}
	catalog, err := im.materials.List(ctx, false)
	if err != nil {
		return Result{}, fmt.Errorf("lecture du catalogue matières: %w", err)
	}
	ledger := NewLedger(existing)
	cache := NewMaterialCache(catalog)

	// materials
	im.tracker.update(func(p *Progress) { p.Phase = PhaseMaterials })

	var (
		queue   = make([]slabs.NewSlab, 0, totalUnits)
		errs    []string
		skipped int
	)
	for _, row := range dec.Rows {
		mat, err := im.reconciler.Resolve(ctx, cache, row)
		if err != nil {
			errs = append(errs, RowError{Line: row.Line, Message: err.Error()}.String())
			metrics.ImportUnits.WithLabelValues("rejected").Add(float64(row.Quantity))
			continue
		}
		for _, u := range Expand(row) {
			if !ledger.Admit(u.Key) {
				skipped++
				continue
			}
			queue = append(queue, newSlab(userID, mat, u))
		}
	}
	log.Info("import reconciled", "queued", len(queue), "duplicates", skipped,
		"materials_created", cache.Created(), "known_keys", ledger.Len())

	// inserting
	im.tracker.update(func(p *Progress) {
		p.Phase = PhaseInserting
		p.Skipped = skipped
		p.Processed = skipped
		p.Errors = append([]string(nil), errs...)
	})
	wr := im.writer.Write(ctx, queue, func(processed, inserted int, werrs []string) {
		im.tracker.update(func(p *Progress) {
			p.Processed = skipped + processed
			p.Inserted = inserted
			p.Errors = append(append([]string(nil), errs...), werrs...)
		})
	})

	// done
	all := make([]string, 0, len(errs)+len(wr.Errors)+len(decodeErrs))
	all = append(all, errs...)
	all = append(all, wr.Errors...)
	all = append(all, decodeErrs...)

	im.tracker.update(func(p *Progress) {
		p.Phase = PhaseDone
		p.Inserted = wr.Inserted
		p.Skipped = skipped
		p.Errors = append([]string(nil), all...)
	})
	im.reloader.Reload(ctx, userID)

	metrics.ImportUnits.WithLabelValues("inserted").Add(float64(wr.Inserted))
	metrics.ImportUnits.WithLabelValues("skipped").Add(float64(skipped))
	metrics.ImportUnits.WithLabelValues("failed").Add(float64(wr.Failed))
	outcome := "ok"
	if len(all) > 0 {
		outcome = "partial"
	}
	metrics.ImportRuns.WithLabelValues(outcome).Inc()
	log.Info("import done", "added", wr.Inserted, "skipped", skipped, "errors", len(all))

	return Result{Added: wr.Inserted, Skipped: skipped, Errors: all}, nil
}

func newSlab(userID uuid.UUID, mat *materials.Material, u Unit) slabs.NewSlab {
	s := slabs.NewSlab{
		UserID:      userID,
		Position:    u.Row.Position,
		Material:    mat.Name,
		Length:      u.Row.Length,
		Width:       u.Row.Width,
		Thickness:   u.Row.Thickness,
		Status:      slabs.StatusAvailable,
		EntryNumber: u.Key,
	}
	switch {
	case u.Row.TotalValue != nil:
		v := *u.Row.TotalValue / float64(u.Row.Quantity)
		s.PriceEstimate = &v
	case mat.CMUP != nil:
		v := u.Row.Length * u.Row.Width / 10000 * *mat.CMUP
		s.PriceEstimate = &v
	}
	return s
}

func formatRowErrors(errs []RowError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.String())
	}
	return out
}

type noopFeed struct{}

func (noopFeed) Suspend(uuid.UUID) {}
func (noopFeed) Resume(uuid.UUID)  {}

func (noopFeed) Reload(context.Context, uuid.UUID) {}
