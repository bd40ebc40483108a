package models

import "fmt"

// Gender is shared by registrations, listings and alert watchers.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderAny    Gender = "any"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderAny:
		return true
	}
	return false
}

// IsSpecific reports whether g names one gender rather than "any".
func (g Gender) IsSpecific() bool {
	return g == GenderMale || g == GenderFemale
}

// Accepts reports whether a listing requiring g can go to someone of gender other.
func (g Gender) Accepts(other Gender) bool {
	return g == GenderAny || !other.IsSpecific() || g == other
}

func ParseGender(s string) (Gender, error) {
	switch s {
	case "M", "m", "H", "h":
		return GenderMale, nil
	case "F", "f":
		return GenderFemale, nil
	case "", "any":
		return GenderAny, nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}
