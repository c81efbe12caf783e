package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHonorifics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Mr. Timothy D. Cook", "Timothy D Cook"},
		{"Dr. Lisa Su", "Lisa Su"},
		{"Warren E. Buffett, CFA", "Warren E Buffett"},
		{"Martin Luther King Jr.", "Martin Luther King"},
		{"Prof. Jane Doe PhD", "Jane Doe"},
		{"CEO Satya Nadella", "Satya Nadella"},
		{"Henry Ford II", "Henry Ford"},
		{"Cook", "Cook"},
		{"Mr.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripHonorifics(tt.input))
		})
	}
}

func TestParseName(t *testing.T) {
	p := ParseName("Mr. Timothy Donald Cook Jr.")
	assert.Equal(t, "Timothy", p.Given)
	assert.Equal(t, []string{"Donald"}, p.Middle)
	assert.Equal(t, "Cook", p.Family)
	assert.Equal(t, "Jr", p.Suffix)

	single := ParseName("Dr. Cook")
	assert.Empty(t, single.Given)
	assert.Equal(t, "Cook", single.Family)

	initialMiddle := ParseName("John V. Smith")
	assert.Equal(t, []string{"V"}, initialMiddle.Middle)
	assert.Empty(t, initialMiddle.Suffix)
}

func TestPersonKeys(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Keys
	}{
		{
			name:  "full name with honorific and middle initial",
			input: "Mr. Timothy D. Cook",
			expected: Keys{
				GivenNorm:       "timothy",
				FamilyNorm:      "cook",
				GivenInitial:    "t",
				GivenPrefix3:    "tim",
				MiddleInitials:  "d",
				FullNormNoHonor: "timothy d cook",
			},
		},
		{
			name:  "initial only given name",
			input: "T. Cook",
			expected: Keys{
				GivenNorm:       "t",
				FamilyNorm:      "cook",
				GivenInitial:    "t",
				GivenPrefix3:    "t__",
				FullNormNoHonor: "t cook",
			},
		},
		{
			name:  "single token is family only",
			input: "Buffett",
			expected: Keys{
				FamilyNorm:      "buffett",
				FullNormNoHonor: "buffett",
			},
		},
		{
			name:  "hyphenated family keeps hyphen",
			input: "José Núñez-García",
			expected: Keys{
				GivenNorm:       "jose",
				FamilyNorm:      "nunez-garcia",
				GivenInitial:    "j",
				GivenPrefix3:    "jos",
				FullNormNoHonor: "jose nunez garcia",
			},
		},
		{
			name:  "two letter given name is padded",
			input: "Al Gore",
			expected: Keys{
				GivenNorm:       "al",
				FamilyNorm:      "gore",
				GivenInitial:    "a",
				GivenPrefix3:    "al_",
				FullNormNoHonor: "al gore",
			},
		},
		{
			name:  "multiple middle names",
			input: "George Herbert Walker Bush",
			expected: Keys{
				GivenNorm:       "george",
				FamilyNorm:      "bush",
				GivenInitial:    "g",
				GivenPrefix3:    "geo",
				MiddleInitials:  "hw",
				FullNormNoHonor: "george hw bush",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PersonKeys(tt.input))
		})
	}
}

func TestKeys_Flags(t *testing.T) {
	assert.True(t, PersonKeys("Cook").FamilyOnly())
	assert.False(t, PersonKeys("Tim Cook").FamilyOnly())
	assert.True(t, PersonKeys("T. Cook").IsInitial())
	assert.False(t, PersonKeys("Tim Cook").IsInitial())
}
