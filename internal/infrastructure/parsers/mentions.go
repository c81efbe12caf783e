package parsers

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/newsground/internal/domain/entities"
)

// RawMention is one extracted mention before conversion.
type RawMention struct {
	SurfaceForm string   `json:"surface_form"`
	Kind        string   `json:"kind"`
	SourceID    string   `json:"source_id,omitempty"`
	Symbols     []string `json:"symbols,omitempty"`
	Text        string   `json:"text,omitempty"`
	LineNum     int      `json:"-"`
}

// Mention converts the raw record into a domain mention.
func (m RawMention) Mention() entities.Mention {
	return entities.Mention{
		SurfaceForm: strings.TrimSpace(m.SurfaceForm),
		Kind:        entities.ParseMentionKind(m.Kind),
		Context: entities.SourceContext{
			SourceID: m.SourceID,
			Symbols:  m.Symbols,
			Text:     m.Text,
		},
	}
}

// ParseMentions reads mentions in the format implied by filename:
// .json (array), .jsonl (one object per line), .csv or .txt (one surface
// form per line, kind "other").
func ParseMentions(filename string, r io.Reader) ([]RawMention, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return parseMentionsJSON(r)
	case ".jsonl", ".ndjson":
		return parseMentionsJSONL(r)
	case ".csv":
		return parseMentionsCSV(r)
	case ".txt", "":
		return parseMentionsText(r)
	default:
		return nil, fmt.Errorf("unsupported mention file format: %s", filepath.Ext(filename))
	}
}

func parseMentionsJSON(r io.Reader) ([]RawMention, error) {
	var mentions []RawMention
	if err := json.NewDecoder(r).Decode(&mentions); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	for i := range mentions {
		mentions[i].LineNum = i + 1
	}
	return mentions, nil
}

func parseMentionsJSONL(r io.Reader) ([]RawMention, error) {
	var mentions []RawMention
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m RawMention
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		m.LineNum = lineNum
		mentions = append(mentions, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mentions: %w", err)
	}
	return mentions, nil
}

// parseMentionsCSV expects columns surface_form, kind, source_id and
// symbols (semicolon separated).
func parseMentionsCSV(r io.Reader) ([]RawMention, error) {
	reader := csv.NewReader(r)
	colIndex, err := readHeader(reader, []string{"surface_form"}, nil)
	if err != nil {
		return nil, err
	}

	var mentions []RawMention
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		mentions = append(mentions, RawMention{
			SurfaceForm: getColumn(record, colIndex, "surface_form"),
			Kind:        getColumn(record, colIndex, "kind"),
			SourceID:    getColumn(record, colIndex, "source_id"),
			Symbols:     splitList(getColumn(record, colIndex, "symbols")),
			Text:        getColumn(record, colIndex, "text"),
			LineNum:     lineNum,
		})
	}
	return mentions, nil
}

func parseMentionsText(r io.Reader) ([]RawMention, error) {
	var mentions []RawMention
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		mentions = append(mentions, RawMention{SurfaceForm: line, Kind: string(entities.MentionOther), LineNum: lineNum})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mentions: %w", err)
	}
	return mentions, nil
}
