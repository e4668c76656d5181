// Package report renders the analysis outcome as a Markdown narrative and
// two tabular CSV exports.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minewatch/backend/internal/storage/models"
)

// impactTerms flag a case summary as mentioning socio-environmental impact.
var impactTerms = []string{"terra indígena", "conflito", "impacto", "ameaça"}

// CaseAnalysis pairs a dataset case with its analysis outcome.
type CaseAnalysis struct {
	Case   models.CaseRecord
	Result *models.AnalysisResult
}

// HolderProfile is the extra analysis run for a recurring holder.
type HolderProfile struct {
	Holder string
	Result *models.AnalysisResult
}

type Assembler struct {
	backendName string
	now         func() time.Time
}

func NewAssembler(backendName string) *Assembler {
	return &Assembler{
		backendName: backendName,
		now:         time.Now,
	}
}

// HasImpactMention reports whether the generated summary mentions any of
// the impact terms.
func HasImpactMention(summary string) bool {
	lower := strings.ToLower(summary)
	for _, term := range impactTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Markdown renders the full narrative report.
func (a *Assembler) Markdown(cases []CaseAnalysis, profiles []HolderProfile) string {
	var b strings.Builder

	b.WriteString("# Relatório SIGMINE – Análise de Contexto com IA\n\n")
	b.WriteString(fmt.Sprintf("**Data de geração:** %s  \n", a.now().Format("02/01/2006 15:04")))
	b.WriteString(fmt.Sprintf("**Motor de busca:** %s  \n", a.backendName))
	b.WriteString(fmt.Sprintf("**Processos analisados:** %d\n\n", len(cases)))

	b.WriteString("## Resumo Executivo\n\n")
	var withImpact []string
	for _, c := range cases {
		if HasImpactMention(c.Result.Summary) {
			withImpact = append(withImpact, c.Case.CaseID)
		}
	}
	if len(withImpact) > 0 {
		b.WriteString(fmt.Sprintf("- **%d processos** com possíveis impactos socioambientais identificados\n", len(withImpact)))
		for i, caseID := range withImpact {
			if i >= 3 {
				break
			}
			b.WriteString(fmt.Sprintf("  - Processo %s: ver análise detalhada abaixo\n", caseID))
		}
	} else {
		b.WriteString("- Nenhum impacto socioambiental significativo foi identificado nas fontes consultadas\n")
	}

	b.WriteString("\n---\n\n## Análise Detalhada dos Processos\n\n")
	for _, c := range cases {
		a.writeCaseSection(&b, c)
	}

	if len(profiles) > 0 {
		b.WriteString("## Perfil dos Titulares Recorrentes\n\n")
		for _, p := range profiles {
			a.writeProfileSection(&b, p)
		}
	}

	a.writeMethodology(&b)

	return b.String()
}

func (a *Assembler) writeCaseSection(b *strings.Builder, c CaseAnalysis) {
	b.WriteString(fmt.Sprintf("### Processo %s\n\n", c.Case.CaseID))
	b.WriteString(fmt.Sprintf("**Titular:** %s  \n", c.Case.Holder))
	b.WriteString(fmt.Sprintf("**UF:** %s  \n", c.Case.Region))
	b.WriteString(fmt.Sprintf("**Área:** %.2f hectares\n\n", c.Case.AreaHectares))

	b.WriteString("#### Análise do contexto\n\n")
	b.WriteString(strings.TrimSpace(c.Result.Summary))
	b.WriteString("\n\n")

	if len(c.Result.RawFindings) > 0 {
		b.WriteString("#### Descobertas relevantes sobre impactos\n")
		for i, finding := range c.Result.RawFindings {
			b.WriteString(fmt.Sprintf("\n**Descoberta %d:**\n", i+1))
			b.WriteString(fmt.Sprintf("> %s\n", truncate(finding.Content, 500)))
			if strings.HasPrefix(finding.Link, "http") {
				title := finding.Title
				if title == "" {
					title = "Link"
				}
				b.WriteString(fmt.Sprintf("> *Fonte: [%s](%s)*\n", title, finding.Link))
				if finding.IsRelevantSite {
					b.WriteString("> **Site especializado em impactos socioambientais**\n")
				}
			} else {
				b.WriteString(fmt.Sprintf("> *Fonte: busca via %s*\n", finding.Query))
			}
		}
		b.WriteString("\n")
	}

	if len(c.Result.Sources) > 0 {
		b.WriteString("#### Fontes consultadas\n\n")
		for _, source := range c.Result.Sources {
			title := source.Title
			if title == "" {
				title = domainOf(source.URL)
			}
			b.WriteString(fmt.Sprintf("- [%s](%s)", title, source.URL))
			if source.Query != "" {
				b.WriteString(fmt.Sprintf(" *(busca: %s)*", source.Query))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("*Nota: as buscas foram realizadas via %s mas nenhuma URL citável foi extraída.*\n\n", a.backendName))
	}

	b.WriteString("---\n\n")
}

func (a *Assembler) writeProfileSection(b *strings.Builder, p HolderProfile) {
	b.WriteString(fmt.Sprintf("### %s\n\n", p.Holder))
	b.WriteString(strings.TrimSpace(p.Result.Summary))
	b.WriteString("\n\n")

	if len(p.Result.Sources) > 0 {
		b.WriteString("**Fontes consultadas:**\n")
		for _, source := range p.Result.Sources {
			title := source.Title
			if title == "" {
				title = domainOf(source.URL)
			}
			b.WriteString(fmt.Sprintf("- [%s](%s)\n", title, source.URL))
		}
	}
	b.WriteString("\n---\n\n")
}

func (a *Assembler) writeMethodology(b *strings.Builder) {
	b.WriteString("## Notas Metodológicas\n\n")
	b.WriteString("- **Fonte dos dados espaciais:** SIGMINE (processos minerários ativos)\n")
	b.WriteString(fmt.Sprintf("- **Motor de busca:** %s\n", a.backendName))
	b.WriteString("- As citações no formato [Fonte: doc_X] referem-se aos trechos recuperados durante a busca na web; a numeração é interna a cada análise e pode variar entre execuções.\n")
	b.WriteString("- A ausência de menção a impactos não significa que eles não existam; recomenda-se verificação adicional junto a FUNAI, IBAMA e MPF.\n")
}

var summaryHeader = []string{
	"processo", "titular", "uf", "area_hectares", "resumo_analise",
	"possui_impacto_mencionado", "num_fontes_consultadas", "fontes_urls",
	"data_analise", "motor_busca",
}

// WriteSummaryCSV writes the row-per-case export.
func (a *Assembler) WriteSummaryCSV(w io.Writer, cases []CaseAnalysis) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(summaryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	timestamp := a.now().Format("2006-01-02 15:04:05")

	for _, c := range cases {
		urls := sourceURLs(c.Result)

		impact := "Não"
		if HasImpactMention(c.Result.Summary) {
			impact = "Sim"
		}

		row := []string{
			c.Case.CaseID,
			c.Case.Holder,
			c.Case.Region,
			fmt.Sprintf("%.2f", c.Case.AreaHectares),
			strings.TrimSpace(strings.ReplaceAll(c.Result.Summary, "\n", " ")),
			impact,
			fmt.Sprintf("%d", len(urls)),
			strings.Join(urls, "; "),
			timestamp,
			a.backendName,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

var findingsHeader = []string{
	"processo", "titular", "conteudo_descoberta", "fonte_url", "titulo_fonte",
	"query_busca", "site_relevante", "motor_busca",
}

// WriteFindingsCSV writes the row-per-finding export with full content.
func (a *Assembler) WriteFindingsCSV(w io.Writer, cases []CaseAnalysis) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(findingsHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, c := range cases {
		for _, finding := range c.Result.RawFindings {
			url := finding.Link
			if !strings.HasPrefix(url, "http") {
				url = ""
			}

			relevant := "Não"
			if finding.IsRelevantSite {
				relevant = "Sim"
			}

			row := []string{
				c.Case.CaseID,
				c.Case.Holder,
				finding.Content,
				url,
				finding.Title,
				finding.Query,
				relevant,
				a.backendName,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// sourceURLs prefers cited sources and falls back to finding links so the
// export always carries whatever URLs the pass surfaced.
func sourceURLs(result *models.AnalysisResult) []string {
	var urls []string
	for _, source := range result.Sources {
		if strings.HasPrefix(source.URL, "http") {
			urls = append(urls, source.URL)
		}
	}
	if len(urls) > 0 {
		return urls
	}

	seen := make(map[string]bool)
	for _, finding := range result.RawFindings {
		if strings.HasPrefix(finding.Link, "http") && !seen[finding.Link] {
			seen[finding.Link] = true
			urls = append(urls, finding.Link)
		}
	}
	return urls
}

func domainOf(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return "Link"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
