package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses organization profiles from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed profiles.
func (p *JSONParser) Parse(r io.Reader) ([]RawOrg, error) {
	var orgs []RawOrg

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&orgs); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range orgs {
		orgs[i].LineNum = i + 1
	}

	return orgs, nil
}
