package reconcile

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/argenomics/arg_go_server/internal/model"
)

// Detection tool names as reported to clients. Order matters elsewhere: the
// reconciler merges sources in this fixed priority.
const (
	ToolAMRFinderPlus = "AMRFinderPlus"
	ToolResFinder     = "ResFinder"
	ToolCARD          = "CARD"
	ToolVFDB          = "VFDB"
	ToolNCBI          = "NCBI"
)

// Parser reads the per-tool result files of one pipeline run.
type Parser struct {
	outputDir string
}

func NewParser(outputDir string) (*Parser, error) {
	if _, err := os.Stat(outputDir); err != nil {
		return nil, fmt.Errorf("output directory not found: %s", outputDir)
	}
	return &Parser{outputDir: outputDir}, nil
}

// abricate banners that can leak into result files.
var bannerPrefixes = []string{"Using ", "Processing:", "Found ", "Tip:", "Done."}

// readAbricate parses an abricate-style TSV: the header is the line starting
// with #FILE, other comment and banner lines are dropped, and any row that
// fails to parse is skipped with a warning rather than aborting the file.
func readAbricate(path, database string) ([]model.RawGeneCall, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var headerLine string
	var dataLines []string
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "#FILE"):
			headerLine = line[1:]
		case strings.HasPrefix(line, "#"):
		case hasBannerPrefix(line):
		case strings.Count(line, "\t") >= 5:
			dataLines = append(dataLines, line)
		}
	}

	if len(dataLines) == 0 || headerLine == "" {
		return nil, nil
	}

	reader := csv.NewReader(strings.NewReader(headerLine + "\n" + strings.Join(dataLines, "\n")))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	var genes []model.RawGeneCall
	for _, record := range records[1:] {
		row := zipRow(header, record)
		gene, err := abricateGene(row, database)
		if err != nil {
			log.Printf("Skipping invalid %s row: %v", database, err)
			continue
		}
		genes = append(genes, gene)
	}
	return genes, nil
}

func hasBannerPrefix(line string) bool {
	for _, p := range bannerPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func zipRow(header, record []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(record) {
			row[strings.TrimSpace(col)] = strings.TrimSpace(record[i])
		}
	}
	return row
}

func abricateGene(row map[string]string, database string) (model.RawGeneCall, error) {
	start, err := atoiOrZero(row["START"])
	if err != nil {
		return model.RawGeneCall{}, fmt.Errorf("bad START %q", row["START"])
	}
	end, err := atoiOrZero(row["END"])
	if err != nil {
		return model.RawGeneCall{}, fmt.Errorf("bad END %q", row["END"])
	}
	coverage, err := atofOrZero(row["%COVERAGE"])
	if err != nil {
		return model.RawGeneCall{}, fmt.Errorf("bad %%COVERAGE %q", row["%COVERAGE"])
	}
	identity, err := atofOrZero(row["%IDENTITY"])
	if err != nil {
		return model.RawGeneCall{}, fmt.Errorf("bad %%IDENTITY %q", row["%IDENTITY"])
	}

	strand := row["STRAND"]
	if strand == "" {
		strand = "+"
	}

	return model.RawGeneCall{
		Gene:       row["GENE"],
		Sequence:   row["SEQUENCE"],
		Start:      start,
		End:        end,
		Strand:     strand,
		Coverage:   coverage,
		Identity:   identity,
		Database:   database,
		Accession:  row["ACCESSION"],
		Product:    row["PRODUCT"],
		Resistance: row["RESISTANCE"],
	}, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func atofOrZero(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (p *Parser) findResultFile(pattern string) string {
	matches, err := filepath.Glob(filepath.Join(p.outputDir, pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

func (p *Parser) parseAbricateTool(tool, pattern, database string) *model.ToolResult {
	file := p.findResultFile(pattern)
	if file == "" {
		log.Printf("%s result file not found", tool)
		return nil
	}

	genes, err := readAbricate(file, database)
	if err != nil {
		log.Printf("Failed to parse %s results: %v", tool, err)
		return nil
	}

	return &model.ToolResult{Tool: tool, NumGenes: len(genes), Genes: genes}
}

func (p *Parser) ParseResFinder() *model.ToolResult {
	return p.parseAbricateTool(ToolResFinder, "04_arg_detection/resfinder/*_resfinder.tsv", "resfinder")
}

func (p *Parser) ParseCARD() *model.ToolResult {
	return p.parseAbricateTool(ToolCARD, "04_arg_detection/card/*_card.tsv", "CARD")
}

func (p *Parser) ParseNCBI() *model.ToolResult {
	return p.parseAbricateTool(ToolNCBI, "04_arg_detection/ncbi/*_ncbi.tsv", "NCBI")
}

// ParseVFDB parses virulence factor hits. Rows default to the VIRULENCE
// element type.
func (p *Parser) ParseVFDB() *model.ToolResult {
	result := p.parseAbricateTool(ToolVFDB, "04_arg_detection/vfdb/*_vfdb.tsv", "VFDB")
	if result == nil {
		return nil
	}
	for i := range result.Genes {
		result.Genes[i].ElementType = model.ElementVirulence
		if result.Genes[i].Resistance == "" {
			result.Genes[i].Resistance = "Virulence"
		}
	}
	return result
}

// ParseAMRFinderPlus parses the AMRFinderPlus table, which uses its own
// column names and reports AMR, VIRULENCE and STRESS elements in one file.
func (p *Parser) ParseAMRFinderPlus() *model.ToolResult {
	file := p.findResultFile("04_arg_detection/amrfinderplus/*_amrfinderplus.tsv")
	if file == "" {
		log.Printf("AMRFinderPlus result file not found")
		return nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Printf("Failed to read AMRFinderPlus results: %v", err)
		return nil
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		log.Printf("Failed to parse AMRFinderPlus results: %v", err)
		return nil
	}
	if len(records) < 2 {
		return &model.ToolResult{Tool: ToolAMRFinderPlus}
	}

	header := records[0]
	var genes []model.RawGeneCall
	for _, record := range records[1:] {
		row := zipRow(header, record)

		symbol := row["Gene symbol"]
		if symbol == "" {
			symbol = row["Element symbol"]
		}
		if symbol == "" {
			continue
		}

		start, err1 := atoiOrZero(row["Start"])
		end, err2 := atoiOrZero(row["Stop"])
		identity, err3 := atofOrZero(row["% Identity to reference sequence"])
		if err1 != nil || err2 != nil || err3 != nil {
			log.Printf("Skipping invalid AMRFinderPlus row for %q", symbol)
			continue
		}
		if row["% Identity to reference sequence"] == "" {
			identity = 100.0
		}

		elementType := row["Element type"]
		if elementType == "" {
			elementType = model.ElementAMR
		}

		strand := row["Strand"]
		if strand == "" {
			strand = "+"
		}

		genes = append(genes, model.RawGeneCall{
			Gene:     symbol,
			Sequence: row["Contig id"],
			Start:    start,
			End:      end,
			Strand:   strand,
			// AMRFinderPlus reports no explicit coverage
			Coverage:       100.0,
			Identity:       identity,
			Database:       ToolAMRFinderPlus,
			Accession:      row["Accession of closest sequence"],
			Product:        row["Sequence name"],
			Resistance:     row["Class"],
			Subclass:       row["Subclass"],
			ElementType:    elementType,
			ElementSubtype: row["Element subtype"],
		})
	}

	return &model.ToolResult{Tool: ToolAMRFinderPlus, NumGenes: len(genes), Genes: genes}
}

// ParseAll runs every tool parser and returns whatever result files exist.
func (p *Parser) ParseAll() map[string]*model.ToolResult {
	results := make(map[string]*model.ToolResult)

	if r := p.ParseAMRFinderPlus(); r != nil {
		results[ToolAMRFinderPlus] = r
	}
	if r := p.ParseResFinder(); r != nil {
		results[ToolResFinder] = r
	}
	if r := p.ParseCARD(); r != nil {
		results[ToolCARD] = r
	}
	if r := p.ParseVFDB(); r != nil {
		results[ToolVFDB] = r
	}
	if r := p.ParseNCBI(); r != nil {
		results[ToolNCBI] = r
	}

	return results
}
