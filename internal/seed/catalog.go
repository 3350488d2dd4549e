// Package seed loads the demo site catalog and writes it into an empty store.
//
// The catalog is CUE (loseto.cue, embedded). Its definitions constrain
// every entry, so a malformed catalog fails at load time with a source
// position instead of producing records the store would reject.
package seed

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed loseto.cue
var losetoSource string

// Site is the centre of the monitored area.
type Site struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Operator string  `json:"operator"`
}

// TrapSpec is a trap placed relative to the site centre.
type TrapSpec struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	DLat   float64  `json:"dLat"`
	DLng   float64  `json:"dLng"`
	Type   string   `json:"type"`
	Bait   string   `json:"bait"`
	Status string   `json:"status"`
	Tags   []string `json:"tags"`
	Notes  string   `json:"notes"`
}

// InspectionSpec is an inspection dated relative to the seeding day.
type InspectionSpec struct {
	Code        string  `json:"code"`
	DaysAgo     int     `json:"daysAgo"`
	Adults      int     `json:"adults"`
	Females     int     `json:"females"`
	Larvae      int     `json:"larvae"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Wind        float64 `json:"wind"`
	Notes       string  `json:"notes"`
}

// RuleSpec is an alert rule, active once seeded.
type RuleSpec struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
	Note      string  `json:"note"`
}

// MessageSpec is the first entry of the message log.
type MessageSpec struct {
	Channel string   `json:"channel"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
}

// Catalog is a decoded site catalog.
type Catalog struct {
	Site        Site             `json:"site"`
	Traps       []TrapSpec       `json:"traps"`
	Inspections []InspectionSpec `json:"inspections"`
	Rules       []RuleSpec       `json:"rules"`
	Kickoff     MessageSpec      `json:"kickoff"`
}

// CatalogError is a catalog that failed to compile, validate or decode.
type CatalogError struct {
	Message string
	Pos     token.Pos
}

func (e *CatalogError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Loseto returns the built-in Bari Loseto catalog.
func Loseto() (*Catalog, error) {
	return Parse("loseto.cue", losetoSource)
}

// Parse compiles a CUE catalog and decodes it. Every value must be concrete.
func Parse(filename, src string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var c Catalog
	if err := v.Decode(&c); err != nil {
		return nil, formatCUEError(err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// check enforces what the CUE definitions cannot express across lists.
func (c *Catalog) check() error {
	codes := make(map[string]bool, len(c.Traps))
	for _, t := range c.Traps {
		if codes[t.Code] {
			return &CatalogError{Message: fmt.Sprintf("duplicate trap code %q", t.Code)}
		}
		codes[t.Code] = true
	}
	for _, i := range c.Inspections {
		if !codes[i.Code] {
			return &CatalogError{Message: fmt.Sprintf("inspection references unknown trap code %q", i.Code)}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CatalogError{Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CatalogError{Message: first.Error(), Pos: positions[0]}
	}
	return &CatalogError{Message: first.Error()}
}
