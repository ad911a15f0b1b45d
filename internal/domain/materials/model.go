package materials

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Type string

const (
	TypeSlabStock  Type = "slab-stock"  // tranches
	TypeBlockStock Type = "block-stock" // blocs
)

type Material struct {
	ID        int64
	Name      string
	Ref       *string
	Type      Type
	Thickness *float64 // см, из названия ("K2" -> 2)
	CMUP      *float64 // стоимость за м²
	Active    bool
	CreatedAt time.Time
}

type NewMaterial struct {
	Name      string
	Ref       string
	Type      Type
	Thickness *float64
	CMUP      *float64
}

var thicknessCode = regexp.MustCompile(`(?i)\bK(\d+(?:[.,]\d+)?)\b`)

// ClassifyName определяет тип по коду толщины в названии (K<цифры>).
func ClassifyName(name string) (Type, *float64) {
	m := thicknessCode.FindStringSubmatch(name)
	if m == nil {
		return TypeBlockStock, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return TypeSlabStock, nil
	}
	return TypeSlabStock, &v
}

func (m Material) RefOr(def string) string {
	if m.Ref == nil || *m.Ref == "" {
		return def
	}
	return *m.Ref
}

func (m Material) CMUPOr(def float64) float64 {
	if m.CMUP == nil {
		return def
	}
	return *m.CMUP
}
