// Package evaluation computes quality indicators over a finished batch run:
// how many cases produced usable analyses, how well the summaries cite their
// sources, and how much of the evidence came from trusted domains.
package evaluation

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/report"
	"github.com/minewatch/backend/pkg/logger"
)

var citationPattern = regexp.MustCompile(`\[Fonte: doc_\d+\]`)

type RunReport struct {
	TotalCases         int
	AnalyzedCount      int
	NoResultsCount     int
	NoContentCount     int
	ImpactCount        int
	AvgSourcesPerCase  float64
	AvgFindingsPerCase float64
	CitedSummaryShare  float64
	RelevantSiteShare  float64
}

// Evaluate classifies each case outcome and aggregates citation and
// source-quality indicators. Terminal states are detected by the absence of
// sources and findings together with an empty result set.
func Evaluate(cases []report.CaseAnalysis) *RunReport {
	rep := &RunReport{
		TotalCases: len(cases),
	}

	var totalSources, totalFindings, citedSummaries, relevantFindings int

	for _, c := range cases {
		if len(c.Result.Sources) == 0 && len(c.Result.RawFindings) == 0 {
			if strings.Contains(c.Result.Summary, "não continham conteúdo") {
				rep.NoContentCount++
			} else if strings.Contains(c.Result.Summary, "Nenhuma informação encontrada") {
				rep.NoResultsCount++
			} else {
				rep.AnalyzedCount++
			}
		} else {
			rep.AnalyzedCount++
		}

		if report.HasImpactMention(c.Result.Summary) {
			rep.ImpactCount++
		}

		if citationPattern.MatchString(c.Result.Summary) {
			citedSummaries++
		}

		totalSources += len(c.Result.Sources)
		totalFindings += len(c.Result.RawFindings)
		for _, f := range c.Result.RawFindings {
			if f.IsRelevantSite {
				relevantFindings++
			}
		}
	}

	if rep.TotalCases > 0 {
		rep.AvgSourcesPerCase = float64(totalSources) / float64(rep.TotalCases)
		rep.AvgFindingsPerCase = float64(totalFindings) / float64(rep.TotalCases)
	}
	if rep.AnalyzedCount > 0 {
		rep.CitedSummaryShare = float64(citedSummaries) / float64(rep.AnalyzedCount)
	}
	if totalFindings > 0 {
		rep.RelevantSiteShare = float64(relevantFindings) / float64(totalFindings)
	}

	logger.Info("Run evaluated",
		zap.Int("total", rep.TotalCases),
		zap.Int("analyzed", rep.AnalyzedCount),
		zap.Int("no_results", rep.NoResultsCount),
		zap.Int("no_content", rep.NoContentCount),
		zap.Float64("cited_summary_share", rep.CitedSummaryShare),
	)

	return rep
}

func (r *RunReport) String() string {
	return fmt.Sprintf(`Run Quality Report
==================

Total Cases: %d

Outcomes:
- Analyzed: %d
- No Search Results: %d
- No Processable Content: %d
- Impact Mentions: %d

Averages:
- Sources per Case: %.2f
- Findings per Case: %.2f

Quality:
- Summaries with Citations: %.1f%%
- Findings from Trusted Domains: %.1f%%
`,
		r.TotalCases,
		r.AnalyzedCount,
		r.NoResultsCount,
		r.NoContentCount,
		r.ImpactCount,
		r.AvgSourcesPerCase,
		r.AvgFindingsPerCase,
		r.CitedSummaryShare*100,
		r.RelevantSiteShare*100,
	)
}
