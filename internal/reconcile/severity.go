package reconcile

import (
	"strings"

	"github.com/argenomics/arg_go_server/internal/model"
)

// Antibiotic-class keywords ranked by WHO CIA / CDC threat level.
var criticalClasses = []string{
	"carbapenem", "polymyxin", "colistin", "glycopeptide", "vancomycin",
	"oxazolidinone", "linezolid", "lipopeptide", "daptomycin", "tigecycline",
}

var highClasses = []string{
	"cephalosporin", "fluoroquinolone", "quinolone", "macrolide",
	"aminoglycoside", "beta-lactam", "penicillin",
}

var mediumClasses = []string{
	"tetracycline", "phenicol", "chloramphenicol", "sulfonamide", "sulphonamide",
	"trimethoprim", "rifamycin", "rifampicin", "fosfomycin", "nitroimidazole",
	"nitrofuran", "fusidic", "mupirocin", "streptogramin",
}

// Curated gene families that escalate severity on their own: carbapenemases,
// mobile colistin resistance, vancomycin clusters, MRSA markers, linezolid
// and daptomycin resistance.
var criticalGenes = []string{
	"ndm", "kpc", "vim", "imp", "oxa-48", "oxa-23", "oxa-24", "oxa-58", "oxa-181",
	"mcr-1", "mcr-2", "mcr-3", "mcr-4", "mcr-5", "mcr-6", "mcr-7", "mcr-8", "mcr-9", "mcr-10", "mcr",
	"vana", "vanb", "vanc", "vand", "vane", "vancomycin",
	"meca", "mecc", "methicillin", "mrsa",
	"optra", "cfr", "poxta",
	"daptomycin",
}

// ESBL families, plasmid quinolone resistance, macrolide efflux/methylases,
// aminoglycoside-modifying enzymes and 16S methyltransferases.
var highGenes = []string{
	"ctx-m", "ctxm", "tem", "shv", "esbl", "cmy", "dha", "acc",
	"qnra", "qnrb", "qnrs", "qnrd", "qnr", "gyra", "parc", "aac(6')-ib-cr",
	"erma", "ermb", "ermc", "erm(", "mefa", "mef(", "mph(",
	"aac(", "aph(", "ant(", "arma", "rmta", "rmtb", "rmtc", "npma",
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ClassifyPriority scores one gene call into CRITICAL, HIGH or MEDIUM. It is
// a pure function of the record's fields and the single source of truth for
// severity: detection listings and reconciled listings both go through it.
func ClassifyPriority(gene, product, resistance, subclass string, coverage, identity float64) string {
	geneName := strings.ToLower(gene)
	productText := strings.ToLower(product)
	combined := strings.ToLower(resistance) + " " + strings.ToLower(subclass) +
		" " + geneName + " " + productText

	score := 0
	switch {
	case containsAny(combined, criticalClasses):
		score = 4
	case containsAny(combined, highClasses):
		score = 3
	case containsAny(combined, mediumClasses):
		score = 2
	default:
		score = 1 // unknown class
	}

	if containsAny(geneName, criticalGenes) || containsAny(productText, criticalGenes) {
		score += 2
	}

	if score < 5 {
		if containsAny(geneName, highGenes) || containsAny(productText, highGenes) {
			score++
		}
	}

	// Confident-detection bonus
	if coverage >= 95 && identity >= 95 {
		score++
	}

	switch {
	case score >= 5:
		return model.PriorityCritical
	case score >= 3:
		return model.PriorityHigh
	default:
		return model.PriorityMedium
	}
}

// ClassifyCall applies ClassifyPriority to a raw tool record.
func ClassifyCall(g *model.RawGeneCall) string {
	return ClassifyPriority(g.Gene, g.Product, g.Resistance, g.Subclass, g.Coverage, g.Identity)
}
