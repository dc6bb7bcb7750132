// Renown - Hospitality Reputation Analytics and Review Aggregation
// Copyright 2026 Renown Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/renownhq/renown

package resolve

import "strings"

// nameSimilarity scores how well a candidate name matches the property
// name, 0-1. Case-insensitive token overlap (Jaccard), with an exact
// normalized match scoring 1.0 outright. Good enough to separate "Kasa
// Austin Downtown" from "Kasa Austin North" without a fuzzy-match
// dependency.
func nameSimilarity(propertyName, candidateName string) float64 {
	a := tokenize(propertyName)
	b := tokenize(candidateName)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	if strings.Join(a, " ") == strings.Join(b, " ") {
		return 1.0
	}

	seen := make(map[string]bool, len(a))
	for _, t := range a {
		seen[t] = true
	}

	intersection := 0
	union := len(seen)
	counted := make(map[string]bool, len(b))
	for _, t := range b {
		if counted[t] {
			continue
		}
		counted[t] = true
		if seen[t] {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

// locationMatch reports whether the candidate's free-form location string
// mentions the property's city.
func locationMatch(city, candidateLocation string) bool {
	if city == "" || candidateLocation == "" {
		return false
	}
	return strings.Contains(strings.ToLower(candidateLocation), strings.ToLower(city))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		// Articles carry no identity signal.
		if f == "the" || f == "a" || f == "an" {
			continue
		}
		out = append(out, f)
	}
	return out
}
