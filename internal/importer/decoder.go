package importer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
)

// MaxRowQuantity: предел «Quantité» на одну строку файла.
const MaxRowQuantity = 10000

type column string

const (
	colEntry     column = "entry"
	colRef       column = "ref"
	colMaterial  column = "material"
	colPosition  column = "position"
	colLength    column = "length"
	colWidth     column = "width"
	colThickness column = "thickness"
	colQuantity  column = "quantity"
	colValue     column = "value"
	colUnitCost  column = "unit_cost"
)

// Синонимы заголовков, без диакритики и в нижнем регистре.
// Порядок важен: ячейка заголовка достаётся первой подходящей колонке.
var headerSynonyms = []struct {
	col   column
	label string
	syns  []string
}{
	{colEntry, "N° entrée", []string{"n° entree", "n entree", "no entree", "numero entree", "num entree", "entree", "n°", "entry", "entry number"}},
	{colRef, "Réf", []string{"ref", "ref.", "reference", "code", "code article"}},
	{colMaterial, "Matière", []string{"matiere", "materiau", "material", "designation", "libelle", "article"}},
	{colPosition, "Allée", []string{"allee", "position", "emplacement", "empl", "pos"}},
	{colLength, "Longueur", []string{"longueur", "long", "long.", "length", "l"}},
	{colWidth, "Largeur", []string{"largeur", "larg", "larg.", "width"}},
	{colThickness, "Épaisseur", []string{"epaisseur", "ep", "ep.", "epais", "thickness"}},
	{colQuantity, "Quantité", []string{"quantite", "qte", "qte.", "qty", "nombre", "nb", "quantity"}},
	{colValue, "Valeur", []string{"valeur", "valeur totale", "montant", "total", "value"}},
	{colUnitCost, "CMUP", []string{"cmup", "prix unitaire", "pu", "cout unitaire", "unit cost"}},
}

var requiredColumns = []column{colRef, colMaterial, colPosition, colLength, colWidth, colThickness}

// HeaderError: файл отклонён целиком: нет обязательных колонок.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "colonnes obligatoires manquantes: " + strings.Join(e.Missing, ", ")
}

var ErrUnreadable = errors.New("fichier illisible (corrompu ou pas au format .xlsx)")

// ParsedRow: одна валидная строка файла (до разбиения по единицам).
type ParsedRow struct {
	Line        int
	EntryNumber string
	Material    string
	Position    string
	Length      float64
	Width       float64
	Thickness   float64
	Quantity    int
	Ref         string
	TotalValue  *float64
	UnitCost    *float64
}

type RowError struct {
	Line    int
	Message string
}

func (e RowError) String() string {
	if e.Line <= 0 {
		return e.Message
	}
	return fmt.Sprintf("Ligne %d: %s", e.Line, e.Message)
}

type DecodeStats struct {
	Lines   int
	Valid   int
	Skipped int
	Invalid int
}

type Decoded struct {
	Rows   []ParsedRow
	Errors []RowError
	Stats  DecodeStats
}

// Decode читает первый лист книги. Ошибки структуры возвращаются как error,
// ошибки строк: в Decoded.Errors.
func Decode(data []byte) (*Decoded, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnreadable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return DecodeRows(rows)
}

// DecodeRows разбирает уже прочитанную сетку; строка 0: заголовок.
func DecodeRows(rows [][]string) (*Decoded, error) {
	if len(rows) == 0 {
		return nil, &HeaderError{Missing: columnNames(requiredColumns)}
	}
	idx := mapHeader(rows[0])

	var missing []column
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &HeaderError{Missing: columnNames(missing)}
	}

	out := &Decoded{}
	for i := 1; i < len(rows); i++ {
		line := i + 1
		cell := func(c column) string {
			j, ok := idx[c]
			if !ok || j >= len(rows[i]) {
				return ""
			}
			return strings.TrimSpace(rows[i][j])
		}
		out.Stats.Lines++

		if cell(colPosition) == "" && cell(colLength) == "" && cell(colWidth) == "" && cell(colThickness) == "" {
			out.Stats.Skipped++
			continue
		}

		row, rerr := decodeRow(line, cell)
		if rerr != nil {
			out.Errors = append(out.Errors, *rerr)
			out.Stats.Invalid++
			continue
		}
		out.Rows = append(out.Rows, row)
		out.Stats.Valid++
	}
	return out, nil
}

func decodeRow(line int, cell func(column) string) (ParsedRow, *RowError) {
	fail := func(format string, args ...any) (ParsedRow, *RowError) {
		return ParsedRow{}, &RowError{Line: line, Message: fmt.Sprintf(format, args...)}
	}

	material := cell(colMaterial)
	ref := cell(colRef)
	if material == "" {
		return fail("matière manquante")
	}
	if ref == "" {
		return fail("référence manquante")
	}

	pos, ok := slabs.NormalizePosition(cell(colPosition))
	if !ok {
		return fail("allée invalide (%q)", cell(colPosition))
	}

	dims := [3]float64{}
	for k, c := range []struct {
		col   column
		label string
	}{{colLength, "longueur"}, {colWidth, "largeur"}, {colThickness, "épaisseur"}} {
		raw := cell(c.col)
		v, err := parseNumber(raw)
		if err != nil || v <= 0 {
			return fail("%s invalide (%q)", c.label, raw)
		}
		dims[k] = v
	}

	qty := 1
	if raw := cell(colQuantity); raw != "" {
		v, err := parseNumber(raw)
		if err != nil || v < 1 || v != math.Trunc(v) {
			return fail("quantité invalide (%q)", raw)
		}
		if v > MaxRowQuantity {
			return fail("quantité trop élevée (%q, maximum %d)", raw, MaxRowQuantity)
		}
		qty = int(v)
	}

	row := ParsedRow{
		Line:        line,
		EntryNumber: cell(colEntry),
		Material:    material,
		Position:    pos,
		Length:      dims[0],
		Width:       dims[1],
		Thickness:   dims[2],
		Quantity:    qty,
		Ref:         ref,
	}
	if raw := cell(colValue); raw != "" {
		v, err := parseNumber(raw)
		if err != nil || v < 0 {
			return fail("valeur invalide (%q)", raw)
		}
		row.TotalValue = &v
	}
	if raw := cell(colUnitCost); raw != "" {
		v, err := parseNumber(raw)
		if err != nil || v < 0 {
			return fail("CMUP invalide (%q)", raw)
		}
		row.UnitCost = &v
	}
	return row, nil
}

// parseNumber принимает "1 234,5", "1.234,5", "1,234.5", "300 €".
func parseNumber(raw string) (float64, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '€' {
			return -1
		}
		return r
	}, raw)
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", raw)
	}
	return v, nil
}

func mapHeader(header []string) map[column]int {
	fold := newFolder()
	idx := make(map[column]int)
	for j, h := range header {
		key := fold(h)
		if key == "" {
			continue
		}
	next:
		for _, hs := range headerSynonyms {
			if _, taken := idx[hs.col]; taken {
				continue
			}
			for _, s := range hs.syns {
				if key == s || (len(s) >= 4 && strings.HasPrefix(key, s+" ")) {
					idx[hs.col] = j
					break next
				}
			}
		}
	}
	return idx
}

// newFolder: transform.Transformer хранит состояние, поэтому свой на каждый вызов Decode.
func newFolder() func(string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	return func(s string) string {
		out, _, err := transform.String(t, s)
		if err != nil {
			out = s
		}
		return strings.ToLower(strings.Join(strings.Fields(out), " "))
	}
}

func columnNames(cs []column) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		for _, hs := range headerSynonyms {
			if hs.col == c {
				out = append(out, hs.label)
			}
		}
	}
	return out
}
