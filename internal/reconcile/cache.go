package reconcile

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/argenomics/arg_go_server/internal/model"
)

// classifiedDocument is the JSON the report step writes next to the HTML
// report. When present it is the single source of truth: API results must
// agree with the rendered report.
type classifiedDocument struct {
	Genes []model.ReconciledGene    `json:"genes"`
	Stats model.ReconciliationStats `json:"stats"`
}

// LoadClassifiedCache loads the pre-computed classified-genes document for a
// run, re-deriving per-source counts from the contributor lists. Returns
// false when no cache exists or it cannot be read, in which case the caller
// recomputes from the raw tool files.
func LoadClassifiedCache(outputDir string) (*Result, bool) {
	matches, err := filepath.Glob(filepath.Join(outputDir, "06_analysis/reports/*_classified_genes.json"))
	if err != nil || len(matches) == 0 {
		return nil, false
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		log.Printf("Failed to read classified genes cache: %v", err)
		return nil, false
	}

	var doc classifiedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("Failed to decode classified genes cache: %v", err)
		return nil, false
	}

	bySource := make(map[string]int)
	for i := range doc.Genes {
		for _, source := range doc.Genes[i].Sources {
			bySource[source]++
		}
	}

	if doc.Stats.ByType == nil {
		doc.Stats.ByType = make(map[string]int)
		for i := range doc.Genes {
			doc.Stats.ByType[doc.Genes[i].ElementType]++
		}
	}

	log.Printf("Loaded %d classified genes from report cache %s", len(doc.Genes), matches[0])
	return &Result{Genes: doc.Genes, BySource: bySource, Stats: doc.Stats}, true
}
