// Package export renders the ticket table as a spreadsheet with the same row
// colouring as the web table.
package export

import (
	"fmt"
	"io"

	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Tickets"

const costFormat = `"$ "0.00`

// rowColors maps a display tag to fill and font colours.
var rowColors = map[model.DisplayTag][2]string{
	model.DisplayResolved:   {"#D4EDDA", "#155724"},
	model.DisplayUrgentOpen: {"#F8D7DA", "#721C24"},
	model.DisplayHighOpen:   {"#FFF3CD", "#856404"},
}

var columnWidths = map[string]float64{"B": 18, "C": 24, "F": 48, "H": 48}

type styleSet struct {
	text int
	cost int
}

// WriteXLSX writes tickets in the given order. The cost column is omitted
// when cost tracking is off.
func WriteXLSX(w io.Writer, tickets []model.Ticket, costTracking bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"ID", "Created", "Customer", "Category", "Priority", "Description", "Status", "Solution"}
	if costTracking {
		header = append(header, "Cost")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i := range tickets {
		t := &tickets[i]
		row := i + 2
		values := []interface{}{
			t.ID, t.CreatedAt, t.Customer, string(t.Category), string(t.Priority),
			t.Description, string(t.Status), t.Solution,
		}
		if costTracking {
			values = append(values, t.Cost)
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("write ticket %d: %w", t.ID, err)
		}
		st := styles[service.ClassifyForDisplay(t)]
		end, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(SheetName, start, end, st.text); err != nil {
			return fmt.Errorf("style ticket %d: %w", t.ID, err)
		}
		if costTracking {
			if err := f.SetCellStyle(SheetName, end, end, st.cost); err != nil {
				return fmt.Errorf("style cost %d: %w", t.ID, err)
			}
		}
	}

	if err := f.AutoFilter(SheetName, "A1:"+lastCol+"1", nil); err != nil {
		return fmt.Errorf("autofilter: %w", err)
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column %s width: %w", col, err)
		}
	}

	return f.Write(w)
}

func newStyles(f *excelize.File) (map[model.DisplayTag]styleSet, error) {
	numFmt := costFormat
	out := make(map[model.DisplayTag]styleSet, 4)
	for _, tag := range []model.DisplayTag{model.DisplayResolved, model.DisplayUrgentOpen, model.DisplayHighOpen, model.DisplayNormal} {
		base := excelize.Style{}
		if c, ok := rowColors[tag]; ok {
			base.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c[0]}}
			base.Font = &excelize.Font{Color: c[1], Bold: tag == model.DisplayUrgentOpen}
		}
		text, err := f.NewStyle(&base)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", tag, err)
		}
		withCost := base
		withCost.CustomNumFmt = &numFmt
		cost, err := f.NewStyle(&withCost)
		if err != nil {
			return nil, fmt.Errorf("cost style %s: %w", tag, err)
		}
		out[tag] = styleSet{text: text, cost: cost}
	}
	return out, nil
}
