package importer

import "fmt"

// Unit: одна физическая плита из строки с quantity=N.
type Unit struct {
	Row   ParsedRow
	Index int     // 1..Quantity
	Key   *string // nil, если у строки нет номера поступления
}

// Expand разворачивает строку в Quantity единиц с ключами "<entry>-<i>".
func Expand(row ParsedRow) []Unit {
	out := make([]Unit, 0, row.Quantity)
	for i := 1; i <= row.Quantity; i++ {
		u := Unit{Row: row, Index: i}
		if row.EntryNumber != "" {
			k := UnitKey(row.EntryNumber, i)
			u.Key = &k
		}
		out = append(out, u)
	}
	return out
}

func UnitKey(entry string, index int) string {
	return fmt.Sprintf("%s-%d", entry, index)
}

// Ledger: множество уже занятых номеров поступления.
type Ledger struct {
	seen map[string]struct{}
}

func NewLedger(existing []string) *Ledger {
	l := &Ledger{seen: make(map[string]struct{}, len(existing))}
	for _, k := range existing {
		l.seen[k] = struct{}{}
	}
	return l
}

// Admit возвращает false для дубликата. Принятый ключ сразу резервируется,
// чтобы две единицы одного прогона не совпали до записи в БД.
func (l *Ledger) Admit(key *string) bool {
	if key == nil {
		return true
	}
	if _, dup := l.seen[*key]; dup {
		return false
	}
	l.seen[*key] = struct{}{}
	return true
}

func (l *Ledger) Len() int { return len(l.seen) }
