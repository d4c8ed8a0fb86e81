package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_WorkedExample(t *testing.T) {
	profile := Profile{
		GPA:          3.8,
		FieldOfStudy: "Computer Science",
		Skills:       []string{"Go", "PostgreSQL", "Docker"},
	}
	req := Requirements{
		MinimumGPA:    3.0,
		FieldsOfStudy: []string{"computer science", "Software Engineering"},
		Skills:        []string{"go", "postgresql", "kubernetes"},
	}

	res := Score(profile, req)

	assert.Equal(t, 88, res.Score)
	assert.True(t, res.Qualified)
	assert.Equal(t, []string{"go", "postgresql"}, res.MatchedSkills)
	assert.Len(t, res.Reasons, 3)
}

func TestScore_NoRequirementsGivesHalfCredit(t *testing.T) {
	res := Score(Profile{}, Requirements{})

	assert.Equal(t, 50, res.Score)
	assert.False(t, res.Qualified)
	assert.Empty(t, res.Reasons)
}

func TestScore_UnmetRequirementsScoreZero(t *testing.T) {
	res := Score(
		Profile{GPA: 2.0, FieldOfStudy: "History", Skills: []string{"Writing"}, YearsExperience: 0},
		Requirements{MinimumGPA: 3.0, FieldsOfStudy: []string{"Engineering"}, Skills: []string{"Go"}, MinimumExperience: 2},
	)

	assert.Equal(t, 0, res.Score)
	assert.False(t, res.Qualified)
}

func TestScore_QualifiedBoundary(t *testing.T) {
	// 40 + 15 + 0 + 5
	res := Score(
		Profile{GPA: 3.5, Skills: []string{"Excel"}},
		Requirements{MinimumGPA: 3.0, Skills: []string{"Go"}},
	)
	assert.Equal(t, 60, res.Score)
	assert.True(t, res.Qualified)
}

func TestScore_SkillSubstringMatch(t *testing.T) {
	res := Score(
		Profile{Skills: []string{"Advanced JavaScript"}},
		Requirements{Skills: []string{"javascript", "rust"}},
	)
	// 20 + 15 + 10 + 5
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, []string{"javascript"}, res.MatchedSkills)
}
