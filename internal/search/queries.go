package search

import (
	"fmt"
	"strings"
)

const (
	maxGeneralQueries = 3
	maxImpactQueries  = 3
	maxSiteQueries    = 6
	maxSiteDomains    = 5
)

// GenerateQueries builds the query set for one case: general lookups,
// impact-term combinations and site-restricted lookups against the trusted
// domains. Deterministic, capped at 12 per case to keep request volume under
// provider rate limits. Registries index the case id both with and without
// its separator, hence the stripped variant.
func GenerateQueries(holder, caseID, region string, domains []string) []string {
	caseIDClean := strings.ReplaceAll(caseID, "/", "")

	general := []string{
		fmt.Sprintf(`"%s" %s`, holder, region),
		fmt.Sprintf(`"%s" mineração`, holder),
		fmt.Sprintf(`processo %s`, caseID),
		fmt.Sprintf(`ANM %s`, caseID),
		fmt.Sprintf(`SIGMINE %s`, caseIDClean),
	}

	impact := []string{
		fmt.Sprintf(`"%s" terra indígena`, holder),
		fmt.Sprintf(`"%s" comunidade tradicional`, holder),
		fmt.Sprintf(`"%s" impacto ambiental`, holder),
		fmt.Sprintf(`"%s" conflito socioambiental`, holder),
		fmt.Sprintf(`"%s" ação civil pública`, holder),
		fmt.Sprintf(`processo %s impacto`, caseID),
		fmt.Sprintf(`processo %s terra indígena`, caseID),
	}

	var site []string
	for i, domain := range domains {
		if i >= maxSiteDomains {
			break
		}
		site = append(site,
			fmt.Sprintf(`site:%s "%s"`, domain, holder),
			fmt.Sprintf(`site:%s %s`, domain, caseID),
			fmt.Sprintf(`site:%s %s`, domain, caseIDClean),
		)
	}

	queries := make([]string, 0, maxGeneralQueries+maxImpactQueries+maxSiteQueries)
	queries = append(queries, limit(general, maxGeneralQueries)...)
	queries = append(queries, limit(impact, maxImpactQueries)...)
	queries = append(queries, limit(site, maxSiteQueries)...)

	return queries
}

func limit(queries []string, n int) []string {
	if len(queries) > n {
		return queries[:n]
	}
	return queries
}
