package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Spok95/stone-stock/internal/domain/materials"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/infra/metrics"
)

const SheetName = "Stock Tranches"

const (
	unknownRef = "?"
	areaDiv    = 10000.0
)

var headers = []string{
	"N°", "Réf", "Matière", "Allée", "Longueur", "Largeur", "Épaisseur",
	"Quantité", "Surface (m²)", "Stock", "CMUP", "Valeur",
}

var colWidths = []float64{6, 12, 28, 8, 10, 10, 10, 10, 13, 10, 10, 13}

type LineKind int

const (
	KindSubtotal LineKind = iota
	KindSlab
)

// Line: строка отчёта: подытог по материалу либо одна плита.
type Line struct {
	Kind      LineKind
	Seq       int // только у KindSlab, сквозной с 1
	Ref       string
	Material  string
	Position  string
	Length    float64
	Width     float64
	Thickness float64
	Quantity  int
	Area      float64
	CMUP      float64
	Value     float64
}

// Build группирует плиты по материалу и раскладывает их в плоский отчёт.
// Материал ищется по имени без учёта регистра; не найден: ref "?" и CMUP 0.
func Build(stock []slabs.Slab, catalog []materials.Material) []Line {
	byName := make(map[string]materials.Material, len(catalog))
	for _, m := range catalog {
		key := nameKey(m.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = m
		}
	}

	groups := make(map[string][]slabs.Slab)
	var names []string
	for _, s := range stock {
		if _, ok := groups[s.Material]; !ok {
			names = append(names, s.Material)
		}
		groups[s.Material] = append(groups[s.Material], s)
	}
	col := collate.New(language.French, collate.IgnoreCase)
	sort.SliceStable(names, func(i, j int) bool {
		if c := col.CompareString(names[i], names[j]); c != 0 {
			return c < 0
		}
		return names[i] < names[j]
	})

	lines := make([]Line, 0, len(stock)+len(names))
	seq := 0
	for _, name := range names {
		items := groups[name]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })

		ref, cmup := unknownRef, 0.0
		if m, ok := byName[nameKey(name)]; ok {
			ref, cmup = m.RefOr(unknownRef), m.CMUPOr(0)
		}

		sub := Line{Kind: KindSubtotal, Ref: ref, Material: name, CMUP: cmup}
		rows := make([]Line, 0, len(items))
		for _, s := range items {
			seq++
			area := s.Length * s.Width * float64(s.Quantity) / areaDiv
			rows = append(rows, Line{
				Kind:      KindSlab,
				Seq:       seq,
				Ref:       ref,
				Material:  name,
				Position:  s.Position,
				Length:    s.Length,
				Width:     s.Width,
				Thickness: s.Thickness,
				Quantity:  s.Quantity,
				Area:      area,
				CMUP:      cmup,
				Value:     area * cmup,
			})
			sub.Quantity += s.Quantity
			sub.Area += area
		}
		sub.Value = sub.Area * cmup

		lines = append(lines, sub)
		lines = append(lines, rows...)
	}
	return lines
}

func nameKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// FileName: имя выгрузки на дату.
func FileName(now time.Time) string {
	return fmt.Sprintf("Stock_Tranches_%s.xlsx", now.Format("2006-01-02"))
}

type styles struct {
	header, subtotal, text, dim, money int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	border := []excelize.Border{
		{Type: "left", Color: "BFBFBF", Style: 1},
		{Type: "right", Color: "BFBFBF", Style: 1},
		{Type: "top", Color: "BFBFBF", Style: 1},
		{Type: "bottom", Color: "BFBFBF", Style: 1},
	}
	dimFmt, moneyFmt := "0", "0.00"

	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#2F5496"}},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&st.subtotal, &excelize.Style{
			Font:         &excelize.Font{Bold: true},
			Fill:         excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9D9D9"}},
			CustomNumFmt: &moneyFmt,
		}},
		{&st.text, &excelize.Style{Border: border}},
		{&st.dim, &excelize.Style{Border: border, CustomNumFmt: &dimFmt}},
		{&st.money, &excelize.Style{Border: border, CustomNumFmt: &moneyFmt}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return st, err
		}
		*d.dst = id
	}
	return st, nil
}

// Render сериализует строки отчёта в xlsx.
func Render(lines []Line) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("styles: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, st.header); err != nil {
		return nil, err
	}

	for i, ln := range lines {
		row := i + 2
		if err := writeLine(f, st, row, ln); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
	}

	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, w); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeLine(f *excelize.File, st styles, row int, ln Line) error {
	cell := func(col int) string {
		c, _ := excelize.CoordinatesToCellName(col, row)
		return c
	}

	if ln.Kind == KindSubtotal {
		vals := []any{"", ln.Ref, ln.Material, "", "", "", "", ln.Quantity, ln.Area, "", ln.CMUP, ln.Value}
		if err := f.SetSheetRow(SheetName, cell(1), &vals); err != nil {
			return err
		}
		return f.SetCellStyle(SheetName, cell(1), cell(len(headers)), st.subtotal)
	}

	vals := []any{
		ln.Seq, ln.Ref, ln.Material, ln.Position,
		ln.Length, ln.Width, ln.Thickness, ln.Quantity,
		ln.Area, "", ln.CMUP, ln.Value,
	}
	if err := f.SetSheetRow(SheetName, cell(1), &vals); err != nil {
		return err
	}
	// A-D текст, E-H размеры/кол-во, I площадь, J пустой сток, K-L деньги
	spans := []struct {
		from, to, style int
	}{
		{1, 4, st.text},
		{5, 8, st.dim},
		{9, 9, st.money},
		{10, 10, st.text},
		{11, 12, st.money},
	}
	for _, s := range spans {
		if err := f.SetCellStyle(SheetName, cell(s.from), cell(s.to), s.style); err != nil {
			return err
		}
	}
	return nil
}

type SlabLister interface {
	ListAll(ctx context.Context, userID uuid.UUID) ([]slabs.Slab, error)
}

type MaterialLister interface {
	List(ctx context.Context, onlyActive bool) ([]materials.Material, error)
}

type Export struct {
	FileName string
	Data     []byte
	Slabs    int
}

// Composer собирает выгрузку склада пользователя. Только чтение.
type Composer struct {
	slabs     SlabLister
	materials MaterialLister
	log       *slog.Logger
	now       func() time.Time
}

func NewComposer(s SlabLister, m MaterialLister, log *slog.Logger) *Composer {
	return &Composer{slabs: s, materials: m, log: log, now: time.Now}
}

func (c *Composer) Export(ctx context.Context, userID uuid.UUID) (*Export, error) {
	if userID == uuid.Nil {
		return nil, slabs.ErrUnauthenticated
	}
	stock, err := c.slabs.ListAll(ctx, userID)
	if err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lecture du stock: %w", err)
	}
	catalog, err := c.materials.List(ctx, false)
	if err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lecture du catalogue matières: %w", err)
	}

	data, err := Render(Build(stock, catalog))
	if err != nil {
		metrics.ExportRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("génération du fichier: %w", err)
	}
	metrics.ExportRuns.WithLabelValues("ok").Inc()
	c.log.Info("export built", "user_id", userID, "slabs", len(stock), "bytes", len(data))

	return &Export{FileName: FileName(c.now()), Data: data, Slabs: len(stock)}, nil
}
