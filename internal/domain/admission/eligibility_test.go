package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/admissions/internal/app/models"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		level     models.ProgramLevel
		education string
		want      bool
	}{
		{"masters accepts bsc", "Masters", "BSc Computer Science", true},
		{"phd rejects bsc", models.LevelPhD, "BSc Computer Science", false},
		{"phd accepts msc", models.LevelPhD, "MSc in Physics", true},
		{"undergraduate accepts lower case secondary", models.LevelUndergraduate, "completed secondary school", true},
		{"undergraduate accepts diploma", models.LevelUndergraduate, "Diploma in Accounting", true},
		{"certificate rejects diploma", models.LevelCertificate, "Diploma in Accounting", false},
		{"diploma accepts certificate", models.LevelDiploma, "Certificate in IT", true},
		{"postgraduate accepts undergraduate", models.LevelPostgraduate, "Undergraduate studies", true},
		{"empty text rejected", models.LevelUndergraduate, "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.level, tt.education)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_UnknownLevel(t *testing.T) {
	_, err := Evaluate("Kindergarten", "High School")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestAcceptedKeywords_ReturnsCopy(t *testing.T) {
	kw, err := AcceptedKeywords(models.LevelPhD)
	require.NoError(t, err)
	kw[0] = "changed"

	again, err := AcceptedKeywords(models.LevelPhD)
	require.NoError(t, err)
	assert.Equal(t, "Masters", again[0])
}

func TestParseLevel_Aliases(t *testing.T) {
	for _, in := range []string{"Masters", "postgraduate", "Postgraduate/Masters"} {
		level, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, models.LevelPostgraduate, level)
	}
}
