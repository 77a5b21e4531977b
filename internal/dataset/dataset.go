// Package dataset provides the labelled BBC news sample used to evaluate the
// extraction pipeline.
package dataset

import (
	"math/rand"
	"strings"
	"time"
)

const BusinessSection = "Business"

// Row is one labelled evaluation example.
type Row struct {
	Article     string `json:"article"`
	IsBusiness  bool   `json:"is_business"`
	Description string `json:"description"`
	Title       string `json:"title"`
}

// Record is one raw row of the BBC news dataset.
type Record struct {
	Title         string `json:"title"`
	PublishedDate string `json:"published_date"`
	Description   string `json:"description"`
	Section       string `json:"section"`
	Content       string `json:"content"`
	Link          string `json:"link"`
}

// Row converts r into an evaluation row: the article is the title, a blank
// line and the content with paragraph breaks collapsed.
func (r Record) Row() Row {
	return Row{
		Article:     r.Title + "\n\n" + strings.ReplaceAll(r.Content, "\n\n", "\n"),
		IsBusiness:  r.Section == BusinessSection,
		Description: r.Description,
		Title:       r.Title,
	}
}

// DefaultConfig is the dataset config (YYYY-MM) of the month 360 days
// before now.
func DefaultConfig(now time.Time) string {
	return now.AddDate(0, 0, -360).Format("2006-01")
}

// BBCSample drops records with a duplicate title, keeping the first, and
// returns as many non-business rows as there are business rows. The
// sampling is seeded and without replacement. Non-business rows come first.
func BBCSample(records []Record, seed int64) []Row {
	seen := make(map[string]struct{}, len(records))
	var business, other []Row
	for _, rec := range records {
		if _, ok := seen[rec.Title]; ok {
			continue
		}
		seen[rec.Title] = struct{}{}

		row := rec.Row()
		if row.IsBusiness {
			business = append(business, row)
		} else {
			other = append(other, row)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	n := len(business)
	out := sample(rng, other, n)
	return append(out, sample(rng, business, n)...)
}

// EvaluationSample takes perClass rows of each class, non-business first.
func EvaluationSample(rows []Row, perClass int, seed int64) []Row {
	var business, other []Row
	for _, row := range rows {
		if row.IsBusiness {
			business = append(business, row)
		} else {
			other = append(other, row)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	out := sample(rng, other, perClass)
	return append(out, sample(rng, business, perClass)...)
}

func sample(rng *rand.Rand, rows []Row, n int) []Row {
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]Row, 0, n)
	for _, i := range rng.Perm(len(rows))[:n] {
		out = append(out, rows[i])
	}
	return out
}
