package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Spok95/stone-stock/internal/domain/materials"
)

type MaterialStore interface {
	List(ctx context.Context, onlyActive bool) ([]materials.Material, error)
	GetByRef(ctx context.Context, ref string) (*materials.Material, error)
	GetByName(ctx context.Context, name string) (*materials.Material, error)
	Create(ctx context.Context, nm materials.NewMaterial) (*materials.Material, error)
}

// MaterialCache живёт ровно один прогон импорта; ключ: ref в нижнем регистре.
type MaterialCache struct {
	byRef   map[string]*materials.Material
	created int
}

func NewMaterialCache(catalog []materials.Material) *MaterialCache {
	c := &MaterialCache{byRef: make(map[string]*materials.Material, len(catalog))}
	for i := range catalog {
		m := &catalog[i]
		if m.Ref == nil {
			continue
		}
		key := refKey(*m.Ref)
		if key == "" {
			continue
		}
		if _, dup := c.byRef[key]; !dup {
			c.byRef[key] = m
		}
	}
	return c
}

func (c *MaterialCache) Get(ref string) (*materials.Material, bool) {
	m, ok := c.byRef[refKey(ref)]
	return m, ok
}

func (c *MaterialCache) put(ref string, m *materials.Material) {
	c.byRef[refKey(ref)] = m
}

func (c *MaterialCache) Created() int { return c.created }

func refKey(ref string) string { return strings.ToLower(strings.TrimSpace(ref)) }

type Reconciler struct {
	store MaterialStore
	log   *slog.Logger
}

func NewReconciler(store MaterialStore, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Resolve: кэш -> точный ref в БД -> существующее имя -> создание нового материала.
func (r *Reconciler) Resolve(ctx context.Context, cache *MaterialCache, row ParsedRow) (*materials.Material, error) {
	if m, ok := cache.Get(row.Ref); ok {
		return m, nil
	}

	m, err := r.store.GetByRef(ctx, row.Ref)
	if err != nil {
		return nil, fmt.Errorf("recherche de la référence %q: %w", row.Ref, err)
	}
	if m != nil {
		cache.put(row.Ref, m)
		return m, nil
	}

	m, err = r.store.GetByName(ctx, row.Material)
	if err != nil {
		return nil, fmt.Errorf("recherche de la matière %q: %w", row.Material, err)
	}
	if m != nil {
		cache.put(row.Ref, m)
		return m, nil
	}

	typ, thickness := materials.ClassifyName(row.Material)
	m, err = r.store.Create(ctx, materials.NewMaterial{
		Name:      row.Material,
		Ref:       row.Ref,
		Type:      typ,
		Thickness: thickness,
		CMUP:      row.UnitCost,
	})
	if err != nil {
		return nil, fmt.Errorf("création de la matière %q (réf %s): %w", row.Material, row.Ref, err)
	}
	cache.put(row.Ref, m)
	cache.created++
	r.log.Info("material created", "ref", row.Ref, "name", m.Name, "type", m.Type)
	return m, nil
}
