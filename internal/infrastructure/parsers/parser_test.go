package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/newsground/internal/domain/entities"
)

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawOrg
	}{
		{
			name:  "single org",
			input: `[{"symbol": "AAPL", "long_name": "Apple Inc.", "short_name": "Apple"}]`,
			expected: []RawOrg{
				{Symbol: "AAPL", LongName: "Apple Inc.", ShortName: "Apple", LineNum: 1},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawOrg{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_Officers(t *testing.T) {
	input := `[{
		"symbol": "AAPL",
		"exchange": "NMS",
		"long_name": "Apple Inc.",
		"sector": "Technology",
		"employees": 164000,
		"confidence": 0.9,
		"officers": [
			{"name": "Mr. Timothy D. Cook", "title": "CEO & Director"},
			{"name": "Mr. Kevan Parekh", "title": "Senior VP & CFO", "since": "2025"}
		]
	}]`

	parser := &JSONParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 1)

	org := result[0]
	assert.Equal(t, "NMS", org.Exchange)
	assert.Equal(t, 164000, org.Employees)
	require.NotNil(t, org.Confidence)
	assert.Equal(t, 0.9, *org.Confidence)
	require.Len(t, org.Officers, 2)
	assert.Equal(t, "Mr. Timothy D. Cook", org.Officers[0].Name)
	assert.Equal(t, "2025", org.Officers[1].Since)
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)
}

func TestCSVParser_Parse_AllColumns(t *testing.T) {
	input := "symbol,exchange,long_name,short_name,display_name,former_names,sector,employees,officers,confidence\n" +
		`META,NMS,"Meta Platforms, Inc.",Meta,Meta,Facebook;Facebook Inc.,Communication Services,67000,"[{""name"":""Mark Zuckerberg"",""title"":""CEO""}]",0.8` + "\n"

	parser := &CSVParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 1)

	org := result[0]
	assert.Equal(t, "META", org.Symbol)
	assert.Equal(t, "Meta Platforms, Inc.", org.LongName)
	assert.Equal(t, []string{"Facebook", "Facebook Inc."}, org.FormerNames)
	assert.Equal(t, 67000, org.Employees)
	require.Len(t, org.Officers, 1)
	assert.Equal(t, "Mark Zuckerberg", org.Officers[0].Name)
	require.NotNil(t, org.Confidence)
	assert.Equal(t, 0.8, *org.Confidence)
	assert.Equal(t, 2, org.LineNum)
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "missing symbol column",
			input:   "long_name\nApple Inc.\n",
			wantErr: "missing required column: symbol",
		},
		{
			name:    "missing name columns",
			input:   "symbol,sector\nAAPL,Technology\n",
			wantErr: "missing name column",
		},
		{
			name:    "invalid employees",
			input:   "symbol,long_name,employees\nAAPL,Apple Inc.,many\n",
			wantErr: "line 2: invalid employees",
		},
		{
			name:    "invalid officers",
			input:   "symbol,long_name,officers\nAAPL,Apple Inc.,not-json\n",
			wantErr: "line 2: invalid officers JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("JSON"))
	assert.IsType(t, &CSVParser{}, ForFormat("csv"))
	assert.Nil(t, ForFormat("xml"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("seed/companies.json"))
	assert.IsType(t, &CSVParser{}, ForFile("companies.CSV"))
	assert.Nil(t, ForFile("companies.txt"))
}

func TestParseMentions(t *testing.T) {
	t.Run("json array", func(t *testing.T) {
		input := `[{"surface_form": "Tim Cook", "kind": "person", "symbols": ["AAPL"]}]`
		result, err := ParseMentions("batch.json", strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result, 1)
		m := result[0].Mention()
		assert.Equal(t, entities.MentionPerson, m.Kind)
		assert.Equal(t, []string{"AAPL"}, m.Context.Symbols)
	})

	t.Run("json lines", func(t *testing.T) {
		input := "{\"surface_form\": \"AAPL\", \"kind\": \"symbol\"}\n\n{\"surface_form\": \"Apple\", \"kind\": \"company\"}\n"
		result, err := ParseMentions("batch.jsonl", strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, 3, result[1].LineNum)
		assert.Equal(t, entities.MentionOrg, result[1].Mention().Kind)
	})

	t.Run("csv", func(t *testing.T) {
		input := "surface_form,kind,source_id,symbols\nT. Cook,person,news-1,AAPL;MSFT\n"
		result, err := ParseMentions("batch.csv", strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "news-1", result[0].SourceID)
		assert.Equal(t, []string{"AAPL", "MSFT"}, result[0].Symbols)
	})

	t.Run("text", func(t *testing.T) {
		input := "# queries\nTim Cook\n\nNvidia\n"
		result, err := ParseMentions("queries.txt", strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, "Nvidia", result[1].SurfaceForm)
		assert.Equal(t, 4, result[1].LineNum)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ParseMentions("batch.xml", strings.NewReader(""))
		require.Error(t, err)
	})
}
