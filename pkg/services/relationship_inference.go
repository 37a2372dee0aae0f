package services

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const foreignKeySuffix = "_id"

// InferRelationships derives foreign-key style relationships from column
// naming alone. For every non-key column named <x>_id in table T, a table
// named x (or its plural or singular form) other than T is a candidate
// target if it has a key-like column (<x>_id or id). No store metadata is consulted, so the result is a
// display heuristic only.
//
// The result is sorted and depends only on the input descriptors.
func InferRelationships(tables []*models.TableDescriptor) []models.Relationship {
	byName := make(map[string]*models.TableDescriptor, len(tables))
	for _, t := range tables {
		if t != nil {
			byName[t.TableName] = t
		}
	}

	seen := make(map[models.Relationship]bool)
	var rels []models.Relationship

	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, col := range t.Columns {
			if col.IsPrimaryKey {
				continue
			}
			base, ok := strings.CutSuffix(col.ColumnName, foreignKeySuffix)
			if !ok || base == "" {
				continue
			}

			target := findTargetTable(byName, base, t.TableName)
			if target == nil {
				continue
			}
			targetCol, ok := keyLikeColumn(target, col.ColumnName)
			if !ok {
				continue
			}

			rel := models.Relationship{
				SourceTable:  t.TableName,
				SourceColumn: col.ColumnName,
				TargetTable:  target.TableName,
				TargetColumn: targetCol,
			}
			if !seen[rel] {
				seen[rel] = true
				rels = append(rels, rel)
			}
		}
	}

	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.SourceTable != b.SourceTable {
			return a.SourceTable < b.SourceTable
		}
		if a.SourceColumn != b.SourceColumn {
			return a.SourceColumn < b.SourceColumn
		}
		return a.TargetTable < b.TargetTable
	})

	return rels
}

// findTargetTable returns the table named base, its plural, or its singular,
// in that order, skipping the source table itself.
func findTargetTable(byName map[string]*models.TableDescriptor, base, source string) *models.TableDescriptor {
	for _, name := range []string{base, inflection.Plural(base), inflection.Singular(base)} {
		if name == source {
			continue
		}
		if t, ok := byName[name]; ok {
			return t
		}
	}
	return nil
}

// keyLikeColumn picks the target column: the same <x>_id name if the target
// has it, then "id".
func keyLikeColumn(target *models.TableDescriptor, fkColumn string) (string, bool) {
	for _, name := range []string{fkColumn, "id"} {
		if target.HasColumn(name) {
			return name, true
		}
	}
	return "", false
}

// RelationshipsFor filters rels to those touching table as source or target.
func RelationshipsFor(rels []models.Relationship, table string) []models.Relationship {
	var out []models.Relationship
	for _, r := range rels {
		if r.SourceTable == table || r.TargetTable == table {
			out = append(out, r)
		}
	}
	return out
}
