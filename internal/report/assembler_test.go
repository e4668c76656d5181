package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/backend/internal/storage/models"
)

func sampleCases() []CaseAnalysis {
	return []CaseAnalysis{
		{
			Case: models.CaseRecord{CaseID: "800.123/2020", Holder: "Mineradora Alfa", Region: "PA", AreaHectares: 9800.5},
			Result: &models.AnalysisResult{
				Summary: "Há conflito documentado com terra indígena [Fonte: doc_0].",
				Sources: []models.SourceRef{
					{URL: "https://www.mpf.mp.br/acao", Title: "Ação do MPF", Query: "q1"},
				},
				RawFindings: []models.SearchResult{
					{
						Content:        "Conflito com comunidade indígena",
						Title:          "Ação do MPF",
						Link:           "https://www.mpf.mp.br/acao",
						Query:          "q1",
						IsRelevantSite: true,
					},
				},
			},
		},
		{
			Case: models.CaseRecord{CaseID: "800.456/2019", Holder: "Mineradora Beta", Region: "MT", AreaHectares: 12000},
			Result: &models.AnalysisResult{
				Summary: "Nenhuma informação encontrada na web para esta consulta.",
			},
		},
	}
}

func TestHasImpactMention(t *testing.T) {
	assert.True(t, HasImpactMention("Há CONFLITO registrado na região"))
	assert.True(t, HasImpactMention("sobreposição com terra indígena"))
	assert.False(t, HasImpactMention("operação regular sem ressalvas"))
	assert.False(t, HasImpactMention(""))
}

func TestMarkdown(t *testing.T) {
	assembler := NewAssembler("google")

	t.Run("Renders header, cases and methodology", func(t *testing.T) {
		md := assembler.Markdown(sampleCases(), nil)

		assert.Contains(t, md, "# Relatório SIGMINE")
		assert.Contains(t, md, "**Motor de busca:** google")
		assert.Contains(t, md, "**Processos analisados:** 2")
		assert.Contains(t, md, "### Processo 800.123/2020")
		assert.Contains(t, md, "### Processo 800.456/2019")
		assert.Contains(t, md, "## Notas Metodológicas")
	})

	t.Run("Executive summary flags impact cases", func(t *testing.T) {
		md := assembler.Markdown(sampleCases(), nil)

		assert.Contains(t, md, "**1 processos** com possíveis impactos socioambientais")
		assert.Contains(t, md, "Processo 800.123/2020: ver análise detalhada")
	})

	t.Run("No impact cases gets the explicit note", func(t *testing.T) {
		cases := sampleCases()[1:]
		md := assembler.Markdown(cases, nil)

		assert.Contains(t, md, "Nenhum impacto socioambiental significativo")
	})

	t.Run("Findings render with source links and trust marker", func(t *testing.T) {
		md := assembler.Markdown(sampleCases(), nil)

		assert.Contains(t, md, "[Ação do MPF](https://www.mpf.mp.br/acao)")
		assert.Contains(t, md, "Site especializado em impactos socioambientais")
	})

	t.Run("Case without sources gets a note naming the backend", func(t *testing.T) {
		md := assembler.Markdown(sampleCases(), nil)
		assert.Contains(t, md, "nenhuma URL citável foi extraída")
	})

	t.Run("Holder profiles render in their own section", func(t *testing.T) {
		profiles := []HolderProfile{
			{
				Holder: "Mineradora Alfa",
				Result: &models.AnalysisResult{
					Summary: "Histórico de autuações ambientais.",
					Sources: []models.SourceRef{{URL: "https://ibama.gov.br/multa", Title: "Multa"}},
				},
			},
		}

		md := assembler.Markdown(sampleCases(), profiles)

		assert.Contains(t, md, "## Perfil dos Titulares Recorrentes")
		assert.Contains(t, md, "### Mineradora Alfa")
		assert.Contains(t, md, "[Multa](https://ibama.gov.br/multa)")
	})
}

func TestWriteSummaryCSV(t *testing.T) {
	assembler := NewAssembler("duckduckgo")

	var buf bytes.Buffer
	require.NoError(t, assembler.WriteSummaryCSV(&buf, sampleCases()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{
		"processo", "titular", "uf", "area_hectares", "resumo_analise",
		"possui_impacto_mencionado", "num_fontes_consultadas", "fontes_urls",
		"data_analise", "motor_busca",
	}, rows[0])

	first := rows[1]
	assert.Equal(t, "800.123/2020", first[0])
	assert.Equal(t, "Mineradora Alfa", first[1])
	assert.Equal(t, "9800.50", first[3])
	assert.Equal(t, "Sim", first[5])
	assert.Equal(t, "1", first[6])
	assert.Equal(t, "https://www.mpf.mp.br/acao", first[7])
	assert.Equal(t, "duckduckgo", first[9])
	assert.False(t, strings.Contains(first[4], "\n"), "summary must be single line")

	second := rows[2]
	assert.Equal(t, "Não", second[5])
	assert.Equal(t, "0", second[6])
}

func TestWriteFindingsCSV(t *testing.T) {
	assembler := NewAssembler("google")

	t.Run("One row per finding", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, assembler.WriteFindingsCSV(&buf, sampleCases()))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, []string{
			"processo", "titular", "conteudo_descoberta", "fonte_url", "titulo_fonte",
			"query_busca", "site_relevante", "motor_busca",
		}, rows[0])

		row := rows[1]
		assert.Equal(t, "800.123/2020", row[0])
		assert.Equal(t, "Conflito com comunidade indígena", row[2])
		assert.Equal(t, "https://www.mpf.mp.br/acao", row[3])
		assert.Equal(t, "Sim", row[6])
		assert.Equal(t, "google", row[7])
	})

	t.Run("Linkless findings export an empty URL", func(t *testing.T) {
		cases := []CaseAnalysis{{
			Case: models.CaseRecord{CaseID: "800.001/2022", Holder: "X"},
			Result: &models.AnalysisResult{
				Summary: "resumo",
				RawFindings: []models.SearchResult{
					{Content: "texto sem link", Source: "Busca: q1", Query: "q1"},
				},
			},
		}}

		var buf bytes.Buffer
		require.NoError(t, assembler.WriteFindingsCSV(&buf, cases))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Empty(t, rows[1][3])
		assert.Equal(t, "Não", rows[1][6])
	})
}

func TestSourceURLs(t *testing.T) {
	t.Run("Falls back to finding links when nothing was cited", func(t *testing.T) {
		result := &models.AnalysisResult{
			RawFindings: []models.SearchResult{
				{Link: "https://a.com"},
				{Link: "https://a.com"},
				{Link: "https://b.com"},
				{Link: ""},
			},
		}

		urls := sourceURLs(result)
		assert.Equal(t, []string{"https://a.com", "https://b.com"}, urls)
	})
}
