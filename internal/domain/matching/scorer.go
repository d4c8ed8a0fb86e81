// Package matching scores a student profile against job requirements.
// The student job feed and the company candidate ranking both use Score.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

const (
	gpaWeight        = 40.0
	fieldWeight      = 30.0
	skillsWeight     = 20.0
	experienceWeight = 10.0

	// QualifyingScore is the minimum rounded score that counts as qualified.
	QualifyingScore = 60
)

// Profile is the subset of a student profile the scorer reads.
type Profile struct {
	GPA             float64
	FieldOfStudy    string
	Skills          []string
	YearsExperience float64
}

// Requirements are a job's criteria. Zero values mean the requirement is absent.
type Requirements struct {
	MinimumGPA        float64
	FieldsOfStudy     []string
	Skills            []string
	MinimumExperience float64
}

type Result struct {
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	Qualified     bool     `json:"qualified"`
	MatchedSkills []string `json:"matchedSkills,omitempty"`
}

// Score computes the weighted compatibility of profile with req.
// An absent requirement earns half of its weight; a present one earns full weight when met and nothing otherwise.
func Score(profile Profile, req Requirements) Result {
	var total float64
	reasons := make([]string, 0, 4)

	switch {
	case req.MinimumGPA <= 0:
		total += gpaWeight / 2
	case profile.GPA >= req.MinimumGPA:
		total += gpaWeight
		reasons = append(reasons, fmt.Sprintf("GPA %.2f meets minimum %.2f", profile.GPA, req.MinimumGPA))
	}

	requiredFields := nonBlank(req.FieldsOfStudy)
	switch {
	case len(requiredFields) == 0:
		total += fieldWeight / 2
	case fieldMatches(profile.FieldOfStudy, requiredFields):
		total += fieldWeight
		reasons = append(reasons, fmt.Sprintf("Field of study %s matches", profile.FieldOfStudy))
	}

	requiredSkills := nonBlank(req.Skills)
	var matched []string
	if len(requiredSkills) == 0 {
		total += skillsWeight / 2
	} else {
		matched = matchSkills(profile.Skills, requiredSkills)
		if len(matched) > 0 {
			total += float64(len(matched)) / float64(len(requiredSkills)) * skillsWeight
			reasons = append(reasons, fmt.Sprintf("Matching skills: %s", strings.Join(matched, ", ")))
		}
	}

	switch {
	case req.MinimumExperience <= 0:
		total += experienceWeight / 2
	case profile.YearsExperience >= req.MinimumExperience:
		total += experienceWeight
		reasons = append(reasons, fmt.Sprintf("%.1f years of experience meets minimum %.1f", profile.YearsExperience, req.MinimumExperience))
	}

	score := int(math.Round(total))
	return Result{
		Score:         score,
		Reasons:       reasons,
		Qualified:     score >= QualifyingScore,
		MatchedSkills: matched,
	}
}

func nonBlank(values []string) []string {
	return lo.Filter(values, func(v string, _ int) bool {
		return strings.TrimSpace(v) != ""
	})
}

func fieldMatches(studentField string, required []string) bool {
	field := strings.ToLower(strings.TrimSpace(studentField))
	if field == "" {
		return false
	}
	return lo.SomeBy(required, func(r string) bool {
		return strings.Contains(field, strings.ToLower(strings.TrimSpace(r)))
	})
}

// matchSkills returns the required skills contained in at least one of the student's skills.
func matchSkills(studentSkills, required []string) []string {
	have := lo.Map(studentSkills, func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	return lo.Filter(required, func(r string, _ int) bool {
		needle := strings.ToLower(strings.TrimSpace(r))
		return lo.SomeBy(have, func(h string) bool {
			return h != "" && strings.Contains(h, needle)
		})
	})
}
