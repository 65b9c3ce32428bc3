// Package export renders entity records as the business-data table.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/records"
)

// Header is the column order of the export
var Header = []string{"id", "file_number", "company", "type", "name", "address"}

// Row is one export line
type Row struct {
	models.BusinessRow
	Company string `json:"company"`
}

func (r Row) values() []string {
	return []string{strconv.FormatInt(r.ID, 10), r.FileNumber, r.Company, r.Type, r.Name, r.Address}
}

// Rows flattens recs into export rows. company is the label of the node holding the record's
// file number, or the file number itself while that node is a stub or absent. Rows are sorted
// by company then type, ties keep input order, and exact duplicates are dropped.
func Rows(recs []models.EntityRecord, g *graph.Graph) []Row {
	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, Row{BusinessRow: records.Simplify(r), Company: companyLabel(g, r.FileNumber)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Company != rows[j].Company {
			return rows[i].Company < rows[j].Company
		}
		return rows[i].Type < rows[j].Type
	})

	seen := make(map[Row]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func companyLabel(g *graph.Graph, fileNumber string) string {
	if g == nil {
		return fileNumber
	}
	holder, ok := g.Resolve(fileNumber)
	if !ok {
		return fileNumber
	}
	n, _ := g.Node(holder)
	if n.Label == "" {
		return fileNumber
	}
	return n.Label
}

// WriteCSV writes the export table with a header line
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return fmt.Errorf("failed to write export row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
