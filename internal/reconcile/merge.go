package reconcile

import (
	"log"
	"strings"

	"github.com/argenomics/arg_go_server/internal/model"
)

// SourceOrder is the fixed merge priority: AMRFinderPlus is authoritative and
// seeds the reconciled set, the others contribute in this order.
var SourceOrder = []string{ToolAMRFinderPlus, ToolResFinder, ToolCARD, ToolVFDB, ToolNCBI}

// MatchKey normalizes a gene symbol for merging: truncate at the first
// underscore (database allele suffixes like _1, _2) and case-fold.
func MatchKey(gene string) string {
	base, _, _ := strings.Cut(gene, "_")
	return strings.ToLower(base)
}

// GeneMatcher decides whether a candidate call refers to the same determinant
// as an already reconciled gene.
type GeneMatcher interface {
	Match(candidateKey, existingGene string) bool
}

// SubstringMatcher is the shipped policy: case-insensitive containment in
// either direction between the candidate's match key and the existing raw
// symbol. Gene-family naming differs across databases, so this trades false
// merges for recall. A short family code contained in an unrelated longer
// symbol will merge wrongly; that risk is accepted.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(candidateKey, existingGene string) bool {
	existing := strings.ToLower(existingGene)
	return strings.Contains(existing, candidateKey) || strings.Contains(candidateKey, existing)
}

// ExactMatcher merges only on identical normalized keys. Not used in
// production; exists to compare policies in tests.
type ExactMatcher struct{}

func (ExactMatcher) Match(candidateKey, existingGene string) bool {
	return MatchKey(existingGene) == candidateKey
}

// Result is one reconciliation pass over all tool outputs.
type Result struct {
	Genes    []model.ReconciledGene    `json:"genes"`
	BySource map[string]int            `json:"by_source"`
	Stats    model.ReconciliationStats `json:"stats"`
}

// Reconciler merges per-tool calls into one deduplicated, severity-ranked
// set.
type Reconciler struct {
	matcher GeneMatcher
}

func NewReconciler(matcher GeneMatcher) *Reconciler {
	if matcher == nil {
		matcher = SubstringMatcher{}
	}
	return &Reconciler{matcher: matcher}
}

// Reconcile merges tool results in SourceOrder. The first source present
// seeds one reconciled gene per record; every later record either joins an
// existing gene (adding its source, keeping the better identity) or inserts a
// new one. Deterministic for a fixed input.
func (r *Reconciler) Reconcile(byTool map[string]*model.ToolResult) *Result {
	result := &Result{
		BySource: make(map[string]int),
		Stats: model.ReconciliationStats{
			ByType: map[string]int{
				model.ElementAMR:       0,
				model.ElementVirulence: 0,
				model.ElementStress:    0,
			},
		},
	}

	seeded := false
	for _, tool := range SourceOrder {
		tr, ok := byTool[tool]
		if !ok || tr == nil {
			continue
		}

		result.BySource[tool] = len(tr.Genes)
		result.Stats.TotalRaw += len(tr.Genes)

		if !seeded {
			for i := range tr.Genes {
				result.Genes = append(result.Genes, newReconciled(&tr.Genes[i], tool))
			}
			seeded = true
			log.Printf("Reconcile: seeded %d genes from %s", len(tr.Genes), tool)
			continue
		}

		added, merged := 0, 0
		for i := range tr.Genes {
			if r.mergeCandidate(result, &tr.Genes[i], tool) {
				merged++
			} else {
				result.Genes = append(result.Genes, newReconciled(&tr.Genes[i], tool))
				added++
			}
		}
		log.Printf("Reconcile: %s - %d added, %d merged", tool, added, merged)
	}

	result.Stats.TotalDeduplicated = len(result.Genes)
	result.Stats.DuplicatesRemoved = result.Stats.TotalRaw - result.Stats.TotalDeduplicated

	// Severity is classified last so merged coverage/identity count toward
	// the confident-detection bonus.
	for i := range result.Genes {
		g := &result.Genes[i]
		g.Priority = ClassifyPriority(g.Gene, g.Product, g.Resistance, g.Subclass, g.Coverage, g.Identity)
		result.Stats.ByType[g.ElementType]++
	}

	return result
}

// mergeCandidate folds the candidate into an existing gene when the matcher
// finds one. Reports true when merged.
func (r *Reconciler) mergeCandidate(result *Result, g *model.RawGeneCall, source string) bool {
	key := MatchKey(g.Gene)
	for i := range result.Genes {
		existing := &result.Genes[i]
		if !r.matcher.Match(key, existing.Gene) {
			continue
		}

		if !containsSource(existing.Sources, source) {
			existing.Sources = append(existing.Sources, source)
		}
		// Keep the call with the strictly better identity
		if g.Identity > existing.Identity {
			existing.Identity = g.Identity
			existing.Coverage = g.Coverage
		}
		return true
	}
	return false
}

func newReconciled(g *model.RawGeneCall, source string) model.ReconciledGene {
	elementType := g.ElementType
	if elementType == "" {
		elementType = model.ElementAMR
	}

	return model.ReconciledGene{
		Gene:           g.Gene,
		Sequence:       g.Sequence,
		Start:          g.Start,
		End:            g.End,
		Strand:         g.Strand,
		Coverage:       g.Coverage,
		Identity:       g.Identity,
		Database:       g.Database,
		Accession:      g.Accession,
		Product:        g.Product,
		Resistance:     g.Resistance,
		Subclass:       g.Subclass,
		ElementType:    elementType,
		ElementSubtype: g.ElementSubtype,
		Source:         source,
		Sources:        []string{source},
		Priority:       ClassifyCall(g),
	}
}

func containsSource(sources []string, source string) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}
