package models

import (
	"fmt"
	"strings"
	"time"
)

// TermSeason identifies one of the three offering seasons.
type TermSeason string

const (
	SeasonFall   TermSeason = "fall"
	SeasonSpring TermSeason = "spring"
	SeasonSummer TermSeason = "summer"
)

// Course is a published catalog course. Identity is (subject, catalog
// number); rows are immutable once published for a term.
type Course struct {
	ID            string    `db:"id" json:"id"`
	Subject       string    `db:"subject" json:"subject"`
	CatalogNumber string    `db:"catalog_number" json:"catalog_number"`
	Title         string    `db:"title" json:"title"`
	Credits       float64   `db:"credits" json:"credits"`
	OfferedFall   bool      `db:"offered_fall" json:"offered_fall"`
	OfferedSpring bool      `db:"offered_spring" json:"offered_spring"`
	OfferedSummer bool      `db:"offered_summer" json:"offered_summer"`
	RequisiteText string    `db:"requisite_text" json:"requisite_text,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Code returns the display identity, e.g. "MATH 1300".
func (c Course) Code() string {
	return CourseCode(c.Subject, c.CatalogNumber)
}

// Level derives the catalog level (1000, 2000, ...) from the leading
// digit of the catalog number. Unparseable numbers sort last.
func (c Course) Level() int {
	trimmed := strings.TrimSpace(c.CatalogNumber)
	if trimmed == "" {
		return 9000
	}
	d := trimmed[0]
	if d < '0' || d > '9' {
		return 9000
	}
	return int(d-'0') * 1000
}

// OfferedIn reports whether the course is offered in the given season.
// An empty season matches any offering.
func (c Course) OfferedIn(season TermSeason) bool {
	switch season {
	case SeasonFall:
		return c.OfferedFall
	case SeasonSpring:
		return c.OfferedSpring
	case SeasonSummer:
		return c.OfferedSummer
	default:
		return true
	}
}

// CourseCode normalises a (subject, catalog number) pair into the
// canonical display form.
func CourseCode(subject, catalogNumber string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(strings.TrimSpace(subject)), strings.TrimSpace(catalogNumber))
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Subject  string
	Search   string
	Page     int
	PageSize int
}
