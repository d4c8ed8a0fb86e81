// Package admission holds the pure rules of the admission lifecycle:
// prior-education eligibility, the status machine and lock naming.
package admission

import (
	"errors"
	"strings"

	"github.com/yigit/admissions/internal/app/models"
)

// ErrUnknownLevel is returned for a program level outside the supported set.
var ErrUnknownLevel = errors.New("unknown program level")

var secondarySchool = []string{"High School", "Secondary", "O-Level", "A-Level", "Grade 12", "Form E"}

var acceptedCredentials = map[models.ProgramLevel][]string{
	models.LevelCertificate:   secondarySchool,
	models.LevelDiploma:       append(append([]string{}, secondarySchool...), "Certificate"),
	models.LevelUndergraduate: {"High School", "Secondary", "O-Level", "A-Level", "Diploma", "Grade 12", "Form E"},
	models.LevelPostgraduate:  {"Bachelor", "Undergraduate", "Degree", "BSc", "BA", "BEd"},
	models.LevelPhD:           {"Masters", "Graduate", "MSc", "MA", "MBA", "MEd"},
}

// ParseLevel maps user input onto a canonical level. Masters and Postgraduate are the same tier.
func ParseLevel(s string) (models.ProgramLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "certificate":
		return models.LevelCertificate, true
	case "diploma":
		return models.LevelDiploma, true
	case "undergraduate", "degree", "bachelor", "bachelors":
		return models.LevelUndergraduate, true
	case "postgraduate", "masters", "master", "postgraduate/masters":
		return models.LevelPostgraduate, true
	case "phd", "doctorate":
		return models.LevelPhD, true
	}
	return "", false
}

// AcceptedKeywords lists the credentials that qualify for level.
func AcceptedKeywords(level models.ProgramLevel) ([]string, error) {
	canonical, ok := ParseLevel(string(level))
	if !ok {
		return nil, ErrUnknownLevel
	}
	keywords := acceptedCredentials[canonical]
	out := make([]string, len(keywords))
	copy(out, keywords)
	return out, nil
}

// Evaluate reports whether priorEducation mentions any credential accepted for level.
// Matching is case-insensitive substring containment.
func Evaluate(level models.ProgramLevel, priorEducation string) (bool, error) {
	keywords, err := AcceptedKeywords(level)
	if err != nil {
		return false, err
	}
	text := strings.ToLower(priorEducation)
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true, nil
		}
	}
	return false, nil
}
