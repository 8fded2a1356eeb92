package mirror

import (
	"cmp"
	"slices"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// Headers are the column labels of the artifact's first row, in the order of
// domain.ExportRow.Record.
var Headers = []string{
	"No.", "Name", "Phone Number", "Email ID", "Date",
	"Purpose of Visit", "Meets Whom", "Comments", "Created At",
}

// Project numbers visitors 1..N in arrival order.
// The input is expected to be oldest-first already; Project sorts a copy by
// (CreatedAt, ID) anyway so the numbering never depends on the caller.
func Project(visitors []domain.Visitor) []domain.ExportRow {
	ordered := slices.Clone(visitors)
	slices.SortStableFunc(ordered, func(a, b domain.Visitor) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	rows := make([]domain.ExportRow, 0, len(ordered))
	for i, v := range ordered {
		rows = append(rows, domain.ExportRow{
			Position:  i + 1,
			Name:      v.Name,
			Phone:     v.Phone,
			Email:     v.Email,
			Date:      v.Date,
			Purpose:   v.Purpose,
			MeetsWhom: v.MeetsWhom,
			Comments:  v.Comments,
			ArrivedAt: v.CreatedAt.UTC().Format(domain.TimestampLayout),
		})
	}
	return rows
}
