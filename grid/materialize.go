package grid

import (
	"strings"

	"github.com/sahilchouksey/gradgrid/model"
)

// Materialize merges entity snapshots, the column registry and a cell
// store snapshot into renderable rows. It is pure: re-run on every
// state mutation, it never touches live stores. statusOverrides lets
// push-delivered statuses win over the last fetched snapshot.
func Materialize(entities []Entity, columns []model.Column, cells map[string]Cell, statusOverrides map[string]model.UniversityStatus) []Row {
	rows := make([]Row, 0, len(entities))
	for _, e := range entities {
		if st, ok := statusOverrides[e.ID]; ok {
			e.Status = st
		}

		row := Row{
			ID:          e.ID,
			FixedFields: e,
			Cells:       make(map[string]CellView),
		}
		for _, col := range columns {
			if col.Scope == model.ScopeFixed {
				continue
			}
			cell := cells[cellKey(e.ID, col.ID)]
			row.Cells[col.ID] = CellView{
				Loading: cell.Loading,
				Value:   cell.Value,
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// DisplayValue renders one column of a row: the computed cell when one
// exists, a loading marker while computing, or the entity's own static
// field when the column id names a fixed field.
func DisplayValue(row Row, columnID string) string {
	switch columnID {
	case model.FixedColumnName:
		return row.FixedFields.Name
	case model.FixedColumnURL:
		return row.FixedFields.URL
	case model.FixedColumnPrograms:
		return strings.Join(row.FixedFields.Programs, ", ")
	case model.FixedColumnStatus:
		return string(row.FixedFields.Status)
	case model.FixedColumnLastUpdated:
		if row.FixedFields.LastUpdated.IsZero() {
			return ""
		}
		return row.FixedFields.LastUpdated.Format("2006-01-02 15:04")
	}

	cell, ok := row.Cells[columnID]
	if !ok {
		return ""
	}
	if cell.Loading {
		return "computing..."
	}
	if cell.Value == nil {
		return ""
	}
	return *cell.Value
}
