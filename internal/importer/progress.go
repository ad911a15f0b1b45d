package importer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseParsing   Phase = "parsing"
	PhaseChecking  Phase = "checking"
	PhaseMaterials Phase = "materials"
	PhaseInserting Phase = "inserting"
	PhaseDone      Phase = "done"
	// PhaseIdle публикуется, когда снимок прогона убран.
	PhaseIdle      Phase = "idle"
)

var phaseOrder = map[Phase]int{
	PhaseParsing:   0,
	PhaseChecking:  1,
	PhaseMaterials: 2,
	PhaseInserting: 3,
	PhaseDone:      4,
}

type Progress struct {
	UserID     uuid.UUID `json:"user_id"`
	Phase      Phase     `json:"phase"`
	TotalLines int       `json:"total_lines"`
	TotalUnits int       `json:"total_units"`
	Processed  int       `json:"processed"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
}

func (p Progress) clone() Progress {
	p.Errors = append([]string(nil), p.Errors...)
	return p
}

// Tracker: единственный писатель снимка прогресса; читатели получают копии.
type Tracker struct {
	mu     sync.RWMutex
	cur    *Progress
	runID  uint64
	subs   map[int]chan Progress
	nextID int
}

func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]chan Progress)}
}

func (t *Tracker) Snapshot() (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.cur == nil {
		return Progress{}, false
	}
	return t.cur.clone(), true
}

// Subscribe: буфер на один снимок, медленный читатель получает только последний.
func (t *Tracker) Subscribe() (<-chan Progress, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan Progress, 1)
	t.subs[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

func (t *Tracker) start(userID uuid.UUID) uint64 {
	t.mu.Lock()
	t.runID++
	t.cur = &Progress{UserID: userID, Phase: PhaseParsing}
	snap := t.cur.clone()
	id := t.runID
	t.publishLocked(snap)
	t.mu.Unlock()
	return id
}

// update применяет fn к снимку; фаза назад не откатывается.
func (t *Tracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return
	}
	prev, owner := t.cur.Phase, t.cur.UserID
	fn(t.cur)
	if phaseOrder[t.cur.Phase] < phaseOrder[prev] {
		t.cur.Phase = prev
	}
	t.cur.UserID = owner
	t.publishLocked(t.cur.clone())
}

func (t *Tracker) publishLocked(p Progress) {
	for _, ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}

// clearAfter убирает снимок через d, если за это время не начался новый прогон,
// и сообщает подписчикам владельца фазу idle.
func (t *Tracker) clearAfter(runID uint64, d time.Duration) {
	time.AfterFunc(d, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.runID != runID || t.cur == nil {
			return
		}
		owner := t.cur.UserID
		t.cur = nil
		t.publishLocked(Progress{UserID: owner, Phase: PhaseIdle})
	})
}
