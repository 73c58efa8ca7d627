package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"jellyneo/idb/internal/domain"
)

const notFoundMessage = "Invalid: Could not find price history. Item for ID either does not exist, or is a Neocash item."

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.SetOutputMirror(w)
	return t
}

func renderRecord(w io.Writer, record *domain.ItemRecord) {
	fmt.Fprintf(w, "%s (#%d)\n", strings.TrimSpace(record.Name), record.ID)
	fmt.Fprintf(w, "Image: %s\n", record.ImageURL)

	if notice := record.InflationNotice; notice != nil {
		fmt.Fprintf(w, "Inflation notice: %s price increase observed on %s\n",
			notice.PercentIncrease, notice.ObservedDate.Format("January 2, 2006"))
	}

	if len(record.PriceHistory) == 0 {
		fmt.Fprintln(w, "No price history available.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Price (k NP)"})
	for _, entry := range record.PriceHistory {
		t.AppendRow(table.Row{entry.Date.Format("2006-01-02"), entry.Price.String()})
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// userMessage phrases recoverable input problems for people at a prompt.
func userMessage(err error) string {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return "Invalid: " + validation.Reason
	case errors.Is(err, domain.ErrItemNotFound):
		return notFoundMessage
	default:
		return err.Error()
	}
}

func parseItemIDs(args []string) ([]domain.ItemID, error) {
	ids := make([]domain.ItemID, 0, len(args))
	for _, arg := range args {
		id, err := domain.ParseItemID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
