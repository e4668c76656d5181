// Package dataset loads the concession case table. Geometry handling and
// area computation happen upstream; this loader consumes the flattened CSV
// the geospatial export produces.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/pkg/logger"
)

var requiredColumns = []string{"case_id", "holder", "region", "area_hectares"}

func Load(path string) ([]models.CaseRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	cases, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	logger.Info("Dataset loaded", zap.String("path", path), zap.Int("cases", len(cases)))
	return cases, nil
}

func Parse(r io.Reader) ([]models.CaseRecord, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var cases []models.CaseRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		area, err := strconv.ParseFloat(strings.TrimSpace(row[index["area_hectares"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid area on row %d: %w", line, err)
		}

		cases = append(cases, models.CaseRecord{
			CaseID:       strings.TrimSpace(row[index["case_id"]]),
			Holder:       strings.TrimSpace(row[index["holder"]]),
			Region:       strings.TrimSpace(row[index["region"]]),
			AreaHectares: area,
		})
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("dataset contains no case rows")
	}

	return cases, nil
}

// TopByArea returns the n largest cases by area, largest first. Ties keep
// the dataset order.
func TopByArea(cases []models.CaseRecord, n int) []models.CaseRecord {
	sorted := make([]models.CaseRecord, len(cases))
	copy(sorted, cases)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AreaHectares > sorted[j].AreaHectares
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// RecurringHolders lists holders appearing more than once among the given
// cases, most frequent first; ties keep first appearance order.
func RecurringHolders(cases []models.CaseRecord) []string {
	counts := make(map[string]int)
	var order []string
	for _, c := range cases {
		if counts[c.Holder] == 0 {
			order = append(order, c.Holder)
		}
		counts[c.Holder]++
	}

	var recurring []string
	for _, holder := range order {
		if counts[holder] > 1 {
			recurring = append(recurring, holder)
		}
	}

	sort.SliceStable(recurring, func(i, j int) bool {
		return counts[recurring[i]] > counts[recurring[j]]
	})

	return recurring
}
