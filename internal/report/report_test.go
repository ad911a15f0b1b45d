package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/stone-stock/internal/domain/materials"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
)

func strp(s string) *string { return &s }
func f64(v float64) *float64 { return &v }

func sampleStock() ([]slabs.Slab, []materials.Material) {
	stock := []slabs.Slab{
		{Position: "A3", Material: "Marbre B", Length: 200, Width: 100, Thickness: 3, Quantity: 1},
		{Position: "B2", Material: "Granit A", Length: 100, Width: 100, Thickness: 2, Quantity: 1},
		{Position: "A1", Material: "Granit A", Length: 300, Width: 200, Thickness: 2, Quantity: 2},
	}
	catalog := []materials.Material{
		{ID: 1, Name: "granit a", Ref: strp("GA"), CMUP: f64(100)},
	}
	return stock, catalog
}

func TestBuildGroupsAndNumbers(t *testing.T) {
	stock, catalog := sampleStock()
	lines := Build(stock, catalog)

	want := []struct {
		kind LineKind
		seq  int
		mat  string
		pos  string
	}{
		{KindSubtotal, 0, "Granit A", ""},
		{KindSlab, 1, "Granit A", "A1"},
		{KindSlab, 2, "Granit A", "B2"},
		{KindSubtotal, 0, "Marbre B", ""},
		{KindSlab, 3, "Marbre B", "A3"},
	}
	if len(lines) != len(want) {
		t.Fatalf("len=%d", len(lines))
	}
	for i, w := range want {
		ln := lines[i]
		if ln.Kind != w.kind || ln.Seq != w.seq || ln.Material != w.mat || ln.Position != w.pos {
			t.Fatalf("line %d = %+v, want %+v", i, ln, w)
		}
	}

	granit := lines[0]
	if granit.Ref != "GA" || granit.Area != 13 || granit.Value != 1300 || granit.Quantity != 3 {
		t.Fatalf("granit subtotal=%+v", granit)
	}
	if lines[1].Area != 12 || lines[1].Value != 1200 {
		t.Fatalf("A1 row=%+v", lines[1])
	}
	marbre := lines[3]
	if marbre.Ref != "?" || marbre.CMUP != 0 || marbre.Value != 0 || marbre.Area != 2 {
		t.Fatalf("marbre subtotal=%+v", marbre)
	}
}

func TestBuildEmpty(t *testing.T) {
	if lines := Build(nil, nil); len(lines) != 0 {
		t.Fatalf("lines=%v", lines)
	}
}

func TestRenderLayout(t *testing.T) {
	stock, catalog := sampleStock()
	data, err := Render(Build(stock, catalog))
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if name := f.GetSheetName(0); name != SheetName || f.SheetCount != 1 {
		t.Fatalf("sheet=%q count=%d", name, f.SheetCount)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0][0] != "N°" || rows[0][11] != "Valeur" {
		t.Fatalf("header=%v", rows[0])
	}
	seqs := []string{rows[1][0], rows[2][0], rows[3][0], rows[4][0], rows[5][0]}
	wantSeq := []string{"", "1", "2", "", "3"}
	for i := range wantSeq {
		if seqs[i] != wantSeq[i] {
			t.Fatalf("seq column=%v", seqs)
		}
	}
	if rows[1][2] != "Granit A" || rows[4][2] != "Marbre B" || rows[5][1] != "?" {
		t.Fatalf("rows=%v", rows)
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 3, 9, 17, 0, 0, 0, time.UTC))
	if got != "Stock_Tranches_2026-03-09.xlsx" {
		t.Fatalf("name=%s", got)
	}
}

type fakeStock struct {
	list []slabs.Slab
	err  error
}

func (s fakeStock) ListAll(context.Context, uuid.UUID) ([]slabs.Slab, error) { return s.list, s.err }

type fakeCatalog []materials.Material

func (c fakeCatalog) List(context.Context, bool) ([]materials.Material, error) { return c, nil }

func TestComposerExport(t *testing.T) {
	stock, catalog := sampleStock()
	c := NewComposer(fakeStock{list: stock}, fakeCatalog(catalog), slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	exp, err := c.Export(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if exp.FileName != "Stock_Tranches_2026-01-02.xlsx" || exp.Slabs != 3 || len(exp.Data) == 0 {
		t.Fatalf("export=%+v", exp.FileName)
	}

	if _, err := c.Export(context.Background(), uuid.Nil); !errors.Is(err, slabs.ErrUnauthenticated) {
		t.Fatalf("err=%v", err)
	}

	boom := errors.New("db down")
	c = NewComposer(fakeStock{err: boom}, fakeCatalog(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := c.Export(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}
