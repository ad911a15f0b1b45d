package bot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/importer"
)

func TestParseMatchArgs(t *testing.T) {
	req, err := parseMatchArgs("300 150,5 3 4 Granit Noir")
	if err != nil {
		t.Fatal(err)
	}
	if *req.Length != 300 || *req.Width != 150.5 || *req.Thickness != 3 {
		t.Fatalf("dims=%v %v %v", *req.Length, *req.Width, *req.Thickness)
	}
	if req.Tolerance == nil || *req.Tolerance != 4 || req.Material != "Granit Noir" {
		t.Fatalf("req=%+v", req)
	}
}

func TestParseMatchArgsOptionalParts(t *testing.T) {
	req, err := parseMatchArgs("- 150 ? Marbre")
	if err != nil {
		t.Fatal(err)
	}
	if req.Length != nil || req.Thickness != nil || *req.Width != 150 {
		t.Fatalf("req=%+v", req)
	}
	if req.Tolerance != nil || req.Material != "Marbre" {
		t.Fatalf("req=%+v", req)
	}

	req, err = parseMatchArgs("300 150 3")
	if err != nil || req.Tolerance != nil || req.Material != "" {
		t.Fatalf("req=%+v err=%v", req, err)
	}
}

func TestParseMatchArgsErrors(t *testing.T) {
	for _, args := range []string{"", "300 150", "abc 150 3", "0 150 3", "NaN 150 3", "- - -", "300 150 3 -2"} {
		if _, err := parseMatchArgs(args); err == nil {
			t.Fatalf("%q: expected error", args)
		}
	}
}

func TestFormatResultTruncatesErrors(t *testing.T) {
	res := importer.Result{Added: 3, Skipped: 1}
	for i := 0; i < 12; i++ {
		res.Errors = append(res.Errors, fmt.Sprintf("Ligne %d: matière manquante", i+2))
	}
	text := formatResult(res)
	if !strings.Contains(text, "Ajoutées : 3") || !strings.Contains(text, "Ignorées (doublons) : 1") {
		t.Fatalf("text=%s", text)
	}
	if strings.Count(text, "• ") != maxErrorsShown || !strings.Contains(text, "et 2 autre(s)") {
		t.Fatalf("text=%s", text)
	}
}

func TestFormatProgress(t *testing.T) {
	text := formatProgress(importer.Progress{Phase: importer.PhaseInserting, TotalLines: 20, TotalUnits: 40, Processed: 10})
	if !strings.Contains(text, "Insertion des tranches") || !strings.Contains(text, "10 / 40 (25%)") {
		t.Fatalf("text=%s", text)
	}
	if text = formatProgress(importer.Progress{Phase: importer.PhaseParsing}); strings.Contains(text, "Unités") {
		t.Fatalf("text=%s", text)
	}
}

func TestImportErrorText(t *testing.T) {
	if got := importErrorText(importer.ErrImportInProgress); !strings.Contains(got, "déjà en cours") {
		t.Fatal(got)
	}
	if got := importErrorText(&importer.HeaderError{Missing: []string{"Largeur"}}); !strings.Contains(got, "Fichier refusé") || !strings.Contains(got, "Largeur") {
		t.Fatal(got)
	}
	tooMany := fmt.Errorf("%w (60000, maximum 50000)", importer.ErrTooManyUnits)
	if got := importErrorText(tooMany); !strings.Contains(got, "Fichier refusé") || !strings.Contains(got, "60000") {
		t.Fatal(got)
	}
}

func TestFormatMatches(t *testing.T) {
	if got := formatMatches(nil); got != "Aucune tranche compatible." {
		t.Fatal(got)
	}
	got := formatMatches([]slabs.MatchResult{{
		Slab:  slabs.Slab{Position: "A1", Material: "Granit", Length: 300, Width: 150.5, Thickness: 3},
		Score: 97,
	}})
	if !strings.Contains(got, "97% · A1 · Granit · 300×150.5×3 cm") {
		t.Fatal(got)
	}
}
