package slabs

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultTolerance = 5.0
	MaxTolerance     = 20.0
)

var ErrUnauthenticated = errors.New("utilisateur non authentifié")

// Requirement: запрос клиента; nil-размер означает «не задан».
type Requirement struct {
	Length    *float64
	Width     *float64
	Thickness *float64
	Material  string
	Tolerance *float64
}

func (r Requirement) tolerance() float64 {
	if r.Tolerance == nil {
		return DefaultTolerance
	}
	return math.Min(math.Max(*r.Tolerance, 0), MaxTolerance)
}

type MatchResult struct {
	Slab          Slab    `json:"slab"`
	Score         int     `json:"compatibility_score"`
	LengthDiff    float64 `json:"length_diff"`
	WidthDiff     float64 `json:"width_diff"`
	ThicknessDiff float64 `json:"thickness_diff"`
}

// Match оценивает кандидатов. Отклонение сверх допуска по любому заданному
// размеру исключает кандидата; незаданный размер считается идеальным совпадением.
func Match(candidates []Slab, req Requirement) []MatchResult {
	tol := req.tolerance()
	material := strings.ToLower(strings.TrimSpace(req.Material))

	out := make([]MatchResult, 0, len(candidates))
	for _, s := range candidates {
		if s.Status != StatusAvailable {
			continue
		}
		if material != "" && strings.ToLower(strings.TrimSpace(s.Material)) != material {
			continue
		}

		ld, ls, ok := axis(s.Length, req.Length, tol)
		if !ok {
			continue
		}
		wd, ws, ok := axis(s.Width, req.Width, tol)
		if !ok {
			continue
		}
		td, ts, ok := axis(s.Thickness, req.Thickness, tol)
		if !ok {
			continue
		}

		out = append(out, MatchResult{
			Slab:          s,
			Score:         int(math.Round(0.3*ls + 0.3*ws + 0.4*ts)),
			LengthDiff:    ld,
			WidthDiff:     wd,
			ThicknessDiff: td,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Slab.Position < out[j].Slab.Position
	})
	return out
}

func axis(actual float64, required *float64, tol float64) (diff, score float64, ok bool) {
	if required == nil || *required <= 0 {
		return 0, 100, true
	}
	diff = actual - *required
	if math.Abs(diff) > tol {
		return diff, 0, false
	}
	return diff, math.Max(0, 100-100*math.Abs(diff)/(*required)), true
}

type compatibleFinder interface {
	FindCompatible(ctx context.Context, userID uuid.UUID, req Requirement) ([]Slab, error)
}

// Matcher: грубый отбор на стороне БД (find_compatible_slabs), оценка: здесь.
type Matcher struct {
	store compatibleFinder
}

func NewMatcher(store compatibleFinder) *Matcher { return &Matcher{store: store} }

func (m *Matcher) Find(ctx context.Context, userID uuid.UUID, req Requirement) ([]MatchResult, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	tol := req.tolerance()
	req.Tolerance = &tol

	candidates, err := m.store.FindCompatible(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return Match(candidates, req), nil
}
