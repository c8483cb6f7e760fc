package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/argenomics/arg_go_server/internal/model"
)

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name       string
		gene       string
		product    string
		resistance string
		subclass   string
		coverage   float64
		identity   float64
		want       string
	}{
		{
			name:       "carbapenemase is critical",
			gene:       "blaNDM-1",
			product:    "metallo-beta-lactamase NDM-1",
			resistance: "carbapenem",
			coverage:   100, identity: 100,
			want: model.PriorityCritical,
		},
		{
			name:       "mobile colistin resistance is critical",
			gene:       "mcr-1",
			resistance: "colistin",
			coverage:   99.2, identity: 98.7,
			want: model.PriorityCritical,
		},
		{
			name:     "vancomycin resistance is critical",
			gene:     "vanA",
			product:  "vancomycin resistance protein VanA",
			coverage: 60, identity: 90,
			want: model.PriorityCritical,
		},
		{
			name:     "van cluster without class text still ranks high",
			gene:     "vanA",
			product:  "VanA family D-alanine ligase",
			coverage: 60, identity: 90,
			want: model.PriorityHigh,
		},
		{
			name:       "esbl with weak coverage is high",
			gene:       "blaCTX-M-15",
			resistance: "cephalosporin",
			coverage:   80, identity: 99.8,
			want: model.PriorityHigh,
		},
		{
			name:       "esbl with confident detection escalates to critical",
			gene:       "blaCTX-M-15",
			resistance: "cephalosporin",
			coverage:   98.5, identity: 99.8,
			want: model.PriorityCritical,
		},
		{
			name:       "tetracycline with weak detection is medium",
			gene:       "tet(B)",
			resistance: "tetracycline",
			coverage:   88, identity: 91,
			want: model.PriorityMedium,
		},
		{
			name:       "tetracycline with confident detection is high",
			gene:       "tet(B)",
			resistance: "tetracycline",
			coverage:   100, identity: 100,
			want: model.PriorityHigh,
		},
		{
			name:     "unknown class defaults to medium",
			gene:     "xyz-1",
			product:  "hypothetical protein",
			coverage: 50, identity: 60,
			want: model.PriorityMedium,
		},
		{
			name:       "fluoroquinolone class alone is high",
			gene:       "unknownGene",
			resistance: "fluoroquinolone",
			coverage:   70, identity: 85,
			want: model.PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPriority(tt.gene, tt.product, tt.resistance, tt.subclass, tt.coverage, tt.identity)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Same inputs, same tier: the scorer reads nothing but its arguments.
func TestClassifyPriority_Deterministic(t *testing.T) {
	first := ClassifyPriority("blaKPC-2", "carbapenemase", "carbapenem", "", 99, 99)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyPriority("blaKPC-2", "carbapenemase", "carbapenem", "", 99, 99))
	}
	assert.Equal(t, model.PriorityCritical, first)
}

// The family bonus matches against gene name and product only, never against
// the class fields.
func TestClassifyPriority_FamilyBonusScope(t *testing.T) {
	// ndm appears only in the resistance text: no +2 family bonus
	got := ClassifyPriority("gene-x", "protein", "ndm something", "", 50, 50)
	assert.Equal(t, model.PriorityMedium, got)

	// Same family keyword in the gene name earns the bonus
	got = ClassifyPriority("blaNDM-5", "protein", "", "", 50, 50)
	assert.Equal(t, model.PriorityHigh, got)
}

func TestClassifyCall(t *testing.T) {
	call := &model.RawGeneCall{
		Gene:       "blaKPC-3",
		Resistance: "carbapenem",
		Coverage:   100,
		Identity:   99.9,
	}
	assert.Equal(t, model.PriorityCritical, ClassifyCall(call))
}
