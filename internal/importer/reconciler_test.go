package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/stone-stock/internal/domain/materials"
)

func TestReconcilerUsesCatalogCache(t *testing.T) {
	store := &fakeMaterials{catalog: []materials.Material{{ID: 1, Name: "Granit Noir", Ref: strp("GRN")}}}
	cache := NewMaterialCache(store.catalog)
	rec := NewReconciler(store, quietLog())

	m, err := rec.Resolve(context.Background(), cache, ParsedRow{Ref: "grn ", Material: "autre nom"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 1 || store.refCalls != 0 {
		t.Fatalf("m=%+v refCalls=%d", m, store.refCalls)
	}
}

func TestReconcilerCreatesOncePerRef(t *testing.T) {
	store := &fakeMaterials{}
	cache := NewMaterialCache(nil)
	rec := NewReconciler(store, quietLog())
	ctx := context.Background()
	cost := 80.0

	first, err := rec.Resolve(ctx, cache, ParsedRow{Ref: "QZ3", Material: "Quartz blanc K3", UnitCost: &cost})
	if err != nil {
		t.Fatal(err)
	}
	second, err := rec.Resolve(ctx, cache, ParsedRow{Ref: "qz3", Material: "Quartz blanc K3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.created) != 1 || cache.Created() != 1 {
		t.Fatalf("created=%d", len(store.created))
	}
	if first.ID != second.ID {
		t.Fatal("same ref resolved to different materials")
	}
	nm := store.created[0]
	if nm.Type != materials.TypeSlabStock || nm.Thickness == nil || *nm.Thickness != 3 {
		t.Fatalf("new material=%+v", nm)
	}
	if nm.CMUP == nil || *nm.CMUP != 80 {
		t.Fatalf("cmup=%v", nm.CMUP)
	}
}

func TestReconcilerBlockStockWithoutCost(t *testing.T) {
	store := &fakeMaterials{}
	rec := NewReconciler(store, quietLog())
	if _, err := rec.Resolve(context.Background(), NewMaterialCache(nil), ParsedRow{Ref: "BL1", Material: "Bloc Carrare"}); err != nil {
		t.Fatal(err)
	}
	nm := store.created[0]
	if nm.Type != materials.TypeBlockStock || nm.Thickness != nil || nm.CMUP != nil {
		t.Fatalf("new material=%+v", nm)
	}
}

func TestReconcilerFallsBackToExactName(t *testing.T) {
	store := &fakeMaterials{catalog: []materials.Material{{ID: 9, Name: "Travertin"}}}
	rec := NewReconciler(store, quietLog())
	m, err := rec.Resolve(context.Background(), NewMaterialCache(store.catalog), ParsedRow{Ref: "TRV", Material: "Travertin"})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 9 || len(store.created) != 0 {
		t.Fatalf("m=%+v created=%d", m, len(store.created))
	}
}

func TestReconcilerCreateFailure(t *testing.T) {
	store := &fakeMaterials{createErr: errBoom}
	rec := NewReconciler(store, quietLog())
	_, err := rec.Resolve(context.Background(), NewMaterialCache(nil), ParsedRow{Ref: "X", Material: "Onyx"})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v", err)
	}
}
