// Package ingest reads daily KPI facts from the measurement feed.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/loonielabs/kpi-sentinel/internal/models"
	"github.com/loonielabs/kpi-sentinel/internal/utils"
)

// CSVSource reads facts from a CSV feed with rows of the shape
// metric_key,date,value[,source]. A leading header row is tolerated.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source reading from path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Facts reads the whole feed. Malformed rows and non-finite values are
// data-quality gaps: they are counted and dropped, never fatal. Only an
// unreadable feed is an error.
func (s *CSVSource) Facts(ctx context.Context) ([]models.Fact, int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("open facts feed: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		facts   []models.Fact
		skipped int
		line    int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read facts feed: %w", err)
		}
		line++

		fact, ok := parseRecord(record)
		if !ok {
			if line == 1 && looksLikeHeader(record) {
				continue
			}
			skipped++
			continue
		}
		facts = append(facts, fact)
	}
	return facts, skipped, nil
}

func parseRecord(record []string) (models.Fact, bool) {
	if len(record) < 3 {
		return models.Fact{}, false
	}
	key := strings.TrimSpace(record[0])
	if key == "" {
		return models.Fact{}, false
	}
	day, err := utils.ParseDay(strings.TrimSpace(record[1]))
	if err != nil {
		return models.Fact{}, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return models.Fact{}, false
	}

	fact := models.Fact{MetricKey: key, Day: day, Value: value}
	if len(record) > 3 {
		fact.Source = strings.TrimSpace(record[3])
	}
	return fact, true
}

// looksLikeHeader spots a label row such as "metric_key,date,value".
func looksLikeHeader(record []string) bool {
	if len(record) < 3 {
		return false
	}
	_, dayErr := utils.ParseDay(strings.TrimSpace(record[1]))
	_, valErr := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	return dayErr != nil && valErr != nil
}
