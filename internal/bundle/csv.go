package bundle

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/sentinel/internal/record"
)

// CSVHeader is the column order of WriteCSV.
var CSVHeader = []string{"date", "trap", "adults", "females", "larvae", "temperature", "humidity", "wind", "notes"}

// WriteCSV writes one row per inspection, in the order given, with the
// trap's name in place of its id. Missing weather readings are empty cells.
func WriteCSV(w io.Writer, traps []record.Trap, insps []record.Inspection) error {
	names := make(map[string]string, len(traps))
	for _, t := range traps {
		names[t.ID] = t.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, i := range insps {
		row := []string{
			i.Date,
			names[i.TrapID],
			strconv.Itoa(i.Adults),
			strconv.Itoa(i.Females),
			strconv.Itoa(i.Larvae),
			optional(i.Temperature),
			optional(i.Humidity),
			optional(i.Wind),
			i.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func optional(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
