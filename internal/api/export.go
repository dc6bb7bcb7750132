// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/renownhq/renown/internal/logging"
	"github.com/renownhq/renown/internal/models"
)

// ExportScores handles GET /scores/export: the full grid as CSV, one row
// per property with a column pair per platform plus the composite.
func (h *Handler) ExportScores(w http.ResponseWriter, r *http.Request) {
	rows, err := h.buildScoreRows(r.Context())
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="renown-scores-%s.csv"`, time.Now().UTC().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	header := []string{"property_id", "property_name", "city", "state"}
	platforms := models.AllPlatforms()
	for _, p := range platforms {
		header = append(header, string(p)+"_score", string(p)+"_reviews")
	}
	header = append(header, "composite_score", "composite_reviews")
	if err := cw.Write(header); err != nil {
		logging.Error().Err(err).Msg("CSV export write failed")
		return
	}

	for _, row := range rows {
		record := []string{row.Property.ID, row.Property.Name, row.Property.City, row.Property.State}
		for _, p := range platforms {
			cell := row.Platforms[p]
			if cell == nil || cell.Normalized == nil {
				record = append(record, "", "")
				continue
			}
			record = append(record,
				strconv.FormatFloat(*cell.Normalized, 'f', 2, 64),
				strconv.Itoa(cell.ReviewCount))
		}
		if row.Composite != nil {
			record = append(record,
				strconv.FormatFloat(row.Composite.Score, 'f', 2, 64),
				strconv.Itoa(row.Composite.ReviewCount))
		} else {
			record = append(record, "", "")
		}
		if err := cw.Write(record); err != nil {
			logging.Error().Err(err).Msg("CSV export write failed")
			return
		}
	}
	cw.Flush()
}
