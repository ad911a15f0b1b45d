package bot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Spok95/stone-stock/internal/domain/slabs"
	"github.com/Spok95/stone-stock/internal/importer"
)

const (
	maxErrorsShown  = 10
	maxMatchesShown = 10
)

const helpText = `Commandes disponibles :
/import : importer un fichier Excel de tranches
/export : télécharger l'état du stock (.xlsx)
/match L l E [tolérance] [matière] : chercher des tranches compatibles
   (dimensions en cm, « - » pour ignorer une dimension)
/purge : supprimer toutes vos tranches
/cancel : annuler l'action en cours`

var phaseTitles = map[importer.Phase]string{
	importer.PhaseParsing:   "Lecture du fichier",
	importer.PhaseChecking:  "Vérification des doublons",
	importer.PhaseMaterials: "Préparation des matières",
	importer.PhaseInserting: "Insertion des tranches",
	importer.PhaseDone:      "Terminé",
}

func formatProgress(p importer.Progress) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏳ Import : %s\n", phaseTitles[p.Phase])
	if p.TotalLines > 0 {
		fmt.Fprintf(&sb, "Lignes lues : %d\n", p.TotalLines)
	}
	if p.TotalUnits > 0 {
		fmt.Fprintf(&sb, "Unités : %d / %d", p.Processed, p.TotalUnits)
		if pct := p.Processed * 100 / p.TotalUnits; pct > 0 {
			fmt.Fprintf(&sb, " (%d%%)", pct)
		}
		sb.WriteString("\n")
	}
	if n := len(p.Errors); n > 0 {
		fmt.Fprintf(&sb, "Erreurs : %d\n", n)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatResult(res importer.Result) string {
	var sb strings.Builder
	sb.WriteString("✅ Import terminé\n")
	fmt.Fprintf(&sb, "Ajoutées : %d\nIgnorées (doublons) : %d", res.Added, res.Skipped)
	if len(res.Errors) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n\n⚠️ Erreurs (%d) :", len(res.Errors))
	for i, e := range res.Errors {
		if i == maxErrorsShown {
			fmt.Fprintf(&sb, "\n… et %d autre(s)", len(res.Errors)-maxErrorsShown)
			break
		}
		sb.WriteString("\n• " + e)
	}
	return sb.String()
}

func importErrorText(err error) string {
	var he *importer.HeaderError
	switch {
	case errors.Is(err, importer.ErrImportInProgress):
		return "⏳ Un import est déjà en cours, réessayez dans un instant."
	case errors.As(err, &he), errors.Is(err, importer.ErrUnreadable), errors.Is(err, importer.ErrTooManyUnits):
		return "❌ Fichier refusé : " + err.Error()
	default:
		return "❌ Import interrompu : " + err.Error()
	}
}

// parseMatchArgs разбирает «L l E [допуск] [материал…]».
// «-» или «?» вместо размера: размер не задан.
func parseMatchArgs(args string) (slabs.Requirement, error) {
	var req slabs.Requirement
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return req, errors.New("indiquez au moins longueur, largeur et épaisseur")
	}
	dims := []**float64{&req.Length, &req.Width, &req.Thickness}
	for i, dst := range dims {
		raw := fields[i]
		if raw == "-" || raw == "?" {
			continue
		}
		v, err := parseDecimal(raw)
		if err != nil || v <= 0 {
			return req, fmt.Errorf("dimension invalide : %q", raw)
		}
		*dst = &v
	}
	rest := fields[3:]
	if len(rest) > 0 {
		if v, err := parseDecimal(rest[0]); err == nil {
			if v < 0 {
				return req, fmt.Errorf("tolérance invalide : %q", rest[0])
			}
			req.Tolerance = &v
			rest = rest[1:]
		}
	}
	req.Material = strings.Join(rest, " ")
	if req.Length == nil && req.Width == nil && req.Thickness == nil {
		return req, errors.New("au moins une dimension doit être renseignée")
	}
	return req, nil
}

func parseDecimal(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", raw)
	}
	return v, nil
}

func formatMatches(results []slabs.MatchResult) string {
	if len(results) == 0 {
		return "Aucune tranche compatible."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 %d tranche(s) compatible(s) :", len(results))
	for i, r := range results {
		if i == maxMatchesShown {
			fmt.Fprintf(&sb, "\n… et %d autre(s)", len(results)-maxMatchesShown)
			break
		}
		s := r.Slab
		fmt.Fprintf(&sb, "\n%d%% · %s · %s · %s×%s×%s cm",
			r.Score, s.Position, s.Material, num(s.Length), num(s.Width), num(s.Thickness))
	}
	return sb.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
