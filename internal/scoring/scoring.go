// Package scoring computes the point value of a single observation. The
// function is deterministic and side-effect free; everything it needs is
// passed in, including the cell's observation count as of before the
// observation is added.
package scoring

import "math"

const BasePoints = 10

const (
	TaxaBonusMultiplier = 1.5
	ResearchGradeBonus  = 1.25
	ScarcityFloor       = 0.8
)

// scarcityBands maps a cell's pre-observation count to the scarcity
// multiplier. First matching band wins.
var scarcityBands = []struct {
	maxCount   int
	multiplier float64
}{
	{0, 3.0},
	{10, 2.0},
	{50, 1.5},
	{200, 1.2},
	{500, 1.0},
}

// bonusTaxa lists, per biome, the iconic taxa that earn the taxa bonus.
var bonusTaxa = map[string][]string{
	"forest":       {"Plantae", "Fungi", "Aves", "Insecta", "Mammalia"},
	"woodland":     {"Plantae", "Fungi", "Aves", "Mammalia"},
	"grassland":    {"Plantae", "Insecta", "Aves", "Arachnida"},
	"shrubland":    {"Plantae", "Reptilia", "Aves", "Insecta"},
	"agricultural": {"Aves", "Insecta", "Plantae"},
	"urban":        {"Aves", "Mammalia", "Plantae"},
	"desert":       {"Reptilia", "Arachnida", "Plantae"},
	"polar":        {"Aves", "Mammalia"},
	"tundra":       {"Mammalia", "Aves", "Plantae"},
	"freshwater":   {"Actinopterygii", "Amphibia", "Insecta", "Aves"},
	"wetland":      {"Amphibia", "Aves", "Insecta", "Plantae"},
	"ocean":        {"Actinopterygii", "Mollusca", "Mammalia", "Aves"},
}

// Factors holds the four scoring factors plus the rounded total. They are
// persisted on the observation so the score stays explainable.
type Factors struct {
	Base               int
	TaxaMultiplier     float64
	ScarcityMultiplier float64
	QualityBonus       float64
	TotalPoints        int
}

// Score computes the points for one observation. priorCount is the cell's
// observation count before this observation is counted; for a batch landing
// in the same cell the caller must advance it record by record.
func Score(iconicTaxon, biome string, priorCount int, researchGrade bool) Factors {
	f := Factors{
		Base:               BasePoints,
		TaxaMultiplier:     1.0,
		ScarcityMultiplier: ScarcityFloor,
		QualityBonus:       1.0,
	}

	if isBonusTaxon(biome, iconicTaxon) {
		f.TaxaMultiplier = TaxaBonusMultiplier
	}

	for _, band := range scarcityBands {
		if priorCount <= band.maxCount {
			f.ScarcityMultiplier = band.multiplier
			break
		}
	}

	if researchGrade {
		f.QualityBonus = ResearchGradeBonus
	}

	f.TotalPoints = int(math.Round(float64(f.Base) * f.TaxaMultiplier * f.ScarcityMultiplier * f.QualityBonus))
	return f
}

func isBonusTaxon(biome, iconicTaxon string) bool {
	if iconicTaxon == "" {
		return false
	}
	for _, t := range bonusTaxa[biome] {
		if t == iconicTaxon {
			return true
		}
	}
	return false
}
