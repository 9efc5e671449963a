package report

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
)

// CSV writes one record per option: the payoffs followed by every criterion column.
// Absent values are written as NA. Numbers are unformatted so spreadsheets can read them.
func CSV(ev *decision.Evaluation) (string, error) {
	res := ev.Result
	cols := criterionColumns(res)

	var b strings.Builder
	w := csv.NewWriter(&b)

	heads := append([]string{"option"}, res.States...)
	for _, c := range cols {
		heads = append(heads, string(c.criterion))
	}
	if err := w.Write(heads); err != nil {
		return "", err
	}

	for i, row := range res.Rows {
		record := []string{row.Option}
		for _, v := range row.Payoffs {
			record = append(record, plain(v))
		}
		for _, c := range cols {
			if c.values == nil {
				record = append(record, "NA")
				continue
			}
			record = append(record, plain(c.values[i]))
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	return b.String(), w.Error()
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
