package importer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/stone-stock/internal/domain/materials"
	"github.com/Spok95/stone-stock/internal/domain/slabs"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strp(s string) *string { return &s }

var stdHeader = []any{"N° entrée", "Réf", "Matière", "Allée", "Longueur", "Largeur", "Épaisseur", "Quantité"}

type fakeSlabStore struct {
	mu       sync.Mutex
	existing []string
	inserted []slabs.NewSlab
	calls    int
	// номер вызова InsertBatch -> ошибка
	failOn func(call int, batch []slabs.NewSlab) error
	listErr error
}

func (s *fakeSlabStore) InsertBatch(_ context.Context, batch []slabs.NewSlab) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn != nil {
		if err := s.failOn(s.calls, batch); err != nil {
			return 0, err
		}
	}
	s.inserted = append(s.inserted, batch...)
	for _, n := range batch {
		if n.EntryNumber != nil {
			s.existing = append(s.existing, *n.EntryNumber)
		}
	}
	return len(batch), nil
}

func (s *fakeSlabStore) ListEntryNumbers(context.Context, uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.existing...), nil
}

type fakeMaterials struct {
	catalog   []materials.Material
	created   []materials.NewMaterial
	refCalls  int
	createErr error
}

func (m *fakeMaterials) List(context.Context, bool) ([]materials.Material, error) {
	return append([]materials.Material(nil), m.catalog...), nil
}

func (m *fakeMaterials) GetByRef(_ context.Context, ref string) (*materials.Material, error) {
	m.refCalls++
	for i := range m.catalog {
		if m.catalog[i].Ref != nil && strings.EqualFold(*m.catalog[i].Ref, ref) {
			mm := m.catalog[i]
			return &mm, nil
		}
	}
	return nil, nil
}

func (m *fakeMaterials) GetByName(_ context.Context, name string) (*materials.Material, error) {
	for i := range m.catalog {
		if m.catalog[i].Name == name {
			mm := m.catalog[i]
			return &mm, nil
		}
	}
	return nil, nil
}

func (m *fakeMaterials) Create(_ context.Context, nm materials.NewMaterial) (*materials.Material, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, nm)
	ref := nm.Ref
	mat := materials.Material{
		ID: int64(len(m.catalog) + 1), Name: nm.Name, Ref: &ref, Type: nm.Type,
		Thickness: nm.Thickness, CMUP: nm.CMUP, Active: true, CreatedAt: time.Now(),
	}
	m.catalog = append(m.catalog, mat)
	return &mat, nil
}

var errBoom = errors.New("boom")
