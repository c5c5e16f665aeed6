package schema

import (
	"log/slog"
	"strings"
)

// SortByDependency orders definitions so that referenced tables come before the
// tables that reference them. Only foreign keys between tables in defs count, so the
// definitions should be loaded at Extended detail. Cycles are broken with a score
// heuristic that prefers tables with fewer unresolved dependencies and tables that sit
// on a two-table cycle.
func SortByDependency(defs []*TableDefinition) []*TableDefinition {
	deps := make(map[string][]string, len(defs))
	inSet := make(map[string]bool, len(defs))
	for _, d := range defs {
		inSet[d.Name.Key()] = true
	}
	for _, d := range defs {
		key := d.Name.Key()
		seen := map[string]bool{}
		for _, fk := range d.ForeignKeys {
			ref := TableName{Schema: fk.ReferencedSchema, Table: fk.ReferencedTable}.Key()
			if ref == key || !inSet[ref] || seen[ref] {
				continue
			}
			seen[ref] = true
			deps[key] = append(deps[key], ref)
		}
	}

	var sorted []*TableDefinition
	processed := make(map[string]bool)

	for len(sorted) < len(defs) {
		added := false

		// Pass 1: tables whose dependencies are satisfied
		for _, d := range defs {
			key := d.Name.Key()
			if processed[key] {
				continue
			}
			ready := true
			for _, dep := range deps[key] {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, d)
				processed[key] = true
				added = true
			}
		}

		if added {
			continue
		}

		// Pass 2: a cycle; pick the best table to break it
		var best *TableDefinition
		bestScore := 0
		for _, d := range defs {
			key := d.Name.Key()
			if processed[key] {
				continue
			}
			score := 0
			circular := false
			for _, dep := range deps[key] {
				if processed[dep] {
					continue
				}
				score -= 100
				for _, back := range deps[dep] {
					if back == key {
						circular = true
					}
				}
			}
			if circular {
				score += 500
			}
			if best == nil || score > bestScore ||
				(score == bestScore && strings.Compare(key, best.Name.Key()) < 0) {
				best = d
				bestScore = score
			}
		}
		slog.Debug("breaking circular dependency", "table", best.Name.FullName(), "score", bestScore)
		sorted = append(sorted, best)
		processed[best.Name.Key()] = true
	}

	return sorted
}
