package importer

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrImportInProgress = errors.New("un import est déjà en cours")

// Guard выдаёт исключительный флаг «идёт импорт».
type Guard interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalGuard: флаг в пределах процесса.
type LocalGuard struct {
	busy atomic.Bool
}

func (g *LocalGuard) Acquire(context.Context) (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrImportInProgress
	}
	return func() { g.busy.Store(false) }, nil
}

