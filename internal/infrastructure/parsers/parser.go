// Package parsers reads seed organizations and mention batches from JSON and CSV.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawOfficer is a person listed on an organization profile.
type RawOfficer struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Since string `json:"since,omitempty"` // YYYY or YYYY-MM-DD
}

// RawOrg represents an organization profile before validation.
type RawOrg struct {
	Symbol      string       `json:"symbol"`
	Exchange    string       `json:"exchange,omitempty"`
	LongName    string       `json:"long_name,omitempty"`
	ShortName   string       `json:"short_name,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	FormerNames []string     `json:"former_names,omitempty"`
	EntityType  string       `json:"entity_type,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Website     string       `json:"website,omitempty"`
	Address     string       `json:"address,omitempty"`
	City        string       `json:"city,omitempty"`
	Country     string       `json:"country,omitempty"`
	Sector      string       `json:"sector,omitempty"`
	Industry    string       `json:"industry,omitempty"`
	Employees   int          `json:"employees,omitempty"`
	Officers    []RawOfficer `json:"officers,omitempty"`
	Source      string       `json:"source,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"` // Pointer to distinguish 0 from unset
	LineNum     int          `json:"-"`                    // Line number in source file (set by parser)
}

// Parser defines the interface for parsing organization profiles.
type Parser interface {
	Parse(r io.Reader) ([]RawOrg, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
