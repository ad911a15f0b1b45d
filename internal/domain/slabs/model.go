package slabs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
)

// Сетка хранения: ряды A–L × колонки 1–8.
const (
	firstRow = 'A'
	lastRow  = 'L'
	lastCol  = 8
)

type Slab struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Position      string     `json:"position"`
	Material      string     `json:"material"`
	Length        float64    `json:"length"`    // см
	Width         float64    `json:"width"`     // см
	Thickness     float64    `json:"thickness"` // см
	Quantity      int        `json:"quantity"`
	Status        Status     `json:"status"`
	EntryNumber   *string    `json:"entry_number"`
	SheetID       *uuid.UUID `json:"sheet_id"`
	PriceEstimate *float64   `json:"price_estimate"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewSlab: одна физическая единица, подготовленная к вставке.
type NewSlab struct {
	UserID        uuid.UUID
	Position      string
	Material      string
	Length        float64
	Width         float64
	Thickness     float64
	Status        Status
	EntryNumber   *string
	PriceEstimate *float64
}

// Area площадь одной единицы в м².
func (s Slab) Area() float64 {
	return s.Length * s.Width / 10000
}

type DeleteResult struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deleted_count"`
	Message      string `json:"message"`
}

// Positions возвращает все 96 кодов позиций в порядке сетки.
func Positions() []string {
	out := make([]string, 0, (lastRow-firstRow+1)*lastCol)
	for r := firstRow; r <= lastRow; r++ {
		for c := 1; c <= lastCol; c++ {
			out = append(out, fmt.Sprintf("%c%d", r, c))
		}
	}
	return out
}

// NormalizePosition приводит код к виду "A1"; ok=false если код вне сетки.
func NormalizePosition(raw string) (string, bool) {
	p := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if len(p) != 2 {
		return "", false
	}
	if p[0] < firstRow || p[0] > lastRow {
		return "", false
	}
	if p[1] < '1' || p[1] > '0'+lastCol {
		return "", false
	}
	return p, true
}

func ValidPosition(p string) bool {
	n, ok := NormalizePosition(p)
	return ok && n == p
}
