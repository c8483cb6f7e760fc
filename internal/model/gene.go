package model

// Element types a detected genetic feature can belong to.
const (
	ElementAMR       = "AMR"
	ElementVirulence = "VIRULENCE"
	ElementStress    = "STRESS"
)

// Severity tiers for a reconciled gene.
const (
	PriorityCritical = "CRITICAL"
	PriorityHigh     = "HIGH"
	PriorityMedium   = "MEDIUM"
)

// RawGeneCall is one row produced by one detection tool. Immutable once
// parsed.
type RawGeneCall struct {
	Gene           string  `json:"gene"`
	Sequence       string  `json:"sequence"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
	Strand         string  `json:"strand"`
	Coverage       float64 `json:"coverage"`
	Identity       float64 `json:"identity"`
	Database       string  `json:"database"`
	Accession      string  `json:"accession"`
	Product        string  `json:"product,omitempty"`
	Resistance     string  `json:"resistance,omitempty"`
	Subclass       string  `json:"subclass,omitempty"`
	ElementType    string  `json:"element_type,omitempty"`
	ElementSubtype string  `json:"element_subtype,omitempty"`
}

// ToolResult bundles the calls one tool produced for a sample.
type ToolResult struct {
	Tool     string        `json:"tool"`
	NumGenes int           `json:"num_genes"`
	Genes    []RawGeneCall `json:"genes"`
}

// ReconciledGene is one logical resistance determinant after merging
// equivalent calls across tools. Sources keeps insertion order, which is the
// merge order.
type ReconciledGene struct {
	Gene           string   `json:"gene"`
	Sequence       string   `json:"sequence"`
	Start          int      `json:"start"`
	End            int      `json:"end"`
	Strand         string   `json:"strand"`
	Coverage       float64  `json:"coverage"`
	Identity       float64  `json:"identity"`
	Database       string   `json:"database"`
	Accession      string   `json:"accession"`
	Product        string   `json:"product,omitempty"`
	Resistance     string   `json:"resistance,omitempty"`
	Subclass       string   `json:"subclass,omitempty"`
	ElementType    string   `json:"element_type"`
	ElementSubtype string   `json:"element_subtype,omitempty"`
	Source         string   `json:"source"`
	Sources        []string `json:"sources"`
	Priority       string   `json:"priority"`
}

// ReconciliationStats is derived from one merge pass and never persisted on
// its own.
type ReconciliationStats struct {
	TotalRaw          int            `json:"total_raw"`
	TotalDeduplicated int            `json:"total_deduplicated"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	ByType            map[string]int `json:"by_type"`
}
