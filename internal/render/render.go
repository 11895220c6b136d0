// Package render prints pivot tables as aligned text with Spanish number formatting.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/sales-tracker/internal/analytics"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NoDataMessage is shown instead of tables when a selection matched nothing.
const NoDataMessage = "No hay datos disponibles para el período seleccionado."

var printer = message.NewPrinter(language.Spanish)

// PivotTable writes p with integer-rounded cells, right-aligned.
func PivotTable(w io.Writer, p *analytics.PivotTable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := append([]string{p.Dimension.Title()}, p.Columns...)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return fmt.Errorf("render header: %w", err)
	}

	rounded := p.Rounded()
	for i, row := range p.Rows {
		cells := make([]string, 0, len(row.Cells)+1)
		cells = append(cells, row.Label)
		for _, v := range rounded[i] {
			cells = append(cells, FormatAmount(v))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t"); err != nil {
			return fmt.Errorf("render row %q: %w", row.Label, err)
		}
	}
	return tw.Flush()
}

// Result writes both tables of r under their titles, or the no-data message.
func Result(w io.Writer, r *analytics.Result) error {
	if r.NoData {
		_, err := fmt.Fprintln(w, NoDataMessage)
		return err
	}
	sections := []struct {
		title string
		table *analytics.PivotTable
	}{
		{"Tabla por Fuente de Suministro", r.BySupplySource},
		{"Tabla por Cliente", r.ByClient},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n%s\n", s.title, strings.Repeat("=", len([]rune(s.title))))
		if err := PivotTable(w, s.table); err != nil {
			return err
		}
	}
	return nil
}

// FormatAmount renders an integer with Spanish digit grouping, e.g. 1.234.567.
func FormatAmount(v int64) string {
	return printer.Sprintf("%d", v)
}
