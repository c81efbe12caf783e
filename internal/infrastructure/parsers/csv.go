package parsers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses organization profiles from CSV.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed profiles.
// Expected columns: symbol, exchange, long_name, short_name, display_name,
// former_names (semicolon separated), entity_type, summary, website,
// address, city, country, sector, industry, employees, officers (JSON
// array of {name, title}), source, confidence.
func (p *CSVParser) Parse(r io.Reader) ([]RawOrg, error) {
	reader := csv.NewReader(r)

	colIndex, err := readHeader(reader, []string{"symbol"}, []string{"long_name", "short_name", "display_name"})
	if err != nil {
		return nil, err
	}

	var orgs []RawOrg
	lineNum := 1 // Header is line 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		org, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}

	return orgs, nil
}

// parseRecord converts a CSV record to a RawOrg.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawOrg, error) {
	org := RawOrg{
		Symbol:      getColumn(record, colIndex, "symbol"),
		Exchange:    getColumn(record, colIndex, "exchange"),
		LongName:    getColumn(record, colIndex, "long_name"),
		ShortName:   getColumn(record, colIndex, "short_name"),
		DisplayName: getColumn(record, colIndex, "display_name"),
		EntityType:  getColumn(record, colIndex, "entity_type"),
		Summary:     getColumn(record, colIndex, "summary"),
		Website:     getColumn(record, colIndex, "website"),
		Address:     getColumn(record, colIndex, "address"),
		City:        getColumn(record, colIndex, "city"),
		Country:     getColumn(record, colIndex, "country"),
		Sector:      getColumn(record, colIndex, "sector"),
		Industry:    getColumn(record, colIndex, "industry"),
		Source:      getColumn(record, colIndex, "source"),
		LineNum:     lineNum,
	}

	org.FormerNames = splitList(getColumn(record, colIndex, "former_names"))

	if s := getColumn(record, colIndex, "employees"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return RawOrg{}, fmt.Errorf("line %d: invalid employees value %q: %w", lineNum, s, err)
		}
		org.Employees = n
	}

	if s := getColumn(record, colIndex, "officers"); s != "" {
		if err := json.Unmarshal([]byte(s), &org.Officers); err != nil {
			return RawOrg{}, fmt.Errorf("line %d: invalid officers JSON: %w", lineNum, err)
		}
	}

	if s := getColumn(record, colIndex, "confidence"); s != "" {
		conf, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return RawOrg{}, fmt.Errorf("line %d: invalid confidence value %q: %w", lineNum, s, err)
		}
		org.Confidence = &conf
	}

	return org, nil
}

// readHeader reads the header row. Every column in required must exist,
// and at least one column of anyOf when anyOf is non-empty.
func readHeader(reader *csv.Reader, required, anyOf []string) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range required {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}
	if len(anyOf) > 0 {
		found := false
		for _, col := range anyOf {
			if _, ok := colIndex[col]; ok {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("missing name column: need one of %s", strings.Join(anyOf, ", "))
		}
	}

	return colIndex, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
