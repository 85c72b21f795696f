package selector

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvolveDateMidnightInLocation(t *testing.T) {
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	assert.NoError(t, err)
	n := Normalizer{Location: warsaw}

	out, ok, err := n.EvolveDate("2024-06-01")
	assert.NoError(t, err)
	assert.True(t, ok)

	// midnight CEST is 22:00 UTC the day before
	assert.Equal(t, time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC), out)
}

func TestEvolveDateBlankIsNotAnError(t *testing.T) {
	out, ok, err := Normalizer{}.EvolveDate("   ")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, out.IsZero())
}

func TestEvolveDateGarbage(t *testing.T) {
	_, ok, err := Normalizer{}.EvolveDate("when pigs fly")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.False(t, ok)
}

func TestEvolveTimeParsesTimestamp(t *testing.T) {
	out, ok, err := Normalizer{}.EvolveTime("2024-06-01 13:45:05")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 13, 45, 5, 0, time.UTC), out)
}

func TestEvolveTimeFallsBackToDate(t *testing.T) {
	out, ok, err := Normalizer{}.EvolveTime("2024-06-01")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), out)
}

func TestParseSort(t *testing.T) {
	spec, err := ParseSort("name asc, age DESC, serial")
	assert.NoError(t, err)
	assert.Equal(t, SortSpec{
		{Path: "name", Dir: Ascending},
		{Path: "age", Dir: Descending},
		{Path: "serial", Dir: Ascending},
	}, spec)
}

func TestParseSortUnknownDirection(t *testing.T) {
	_, err := ParseSort("name sideways")
	assert.ErrorIs(t, err, ErrInvalidSortDirection)
}

func TestSortSpecFrom(t *testing.T) {
	spec, err := SortSpecFrom(D("a", 1, "b", -1, "c", "desc"))
	assert.NoError(t, err)
	assert.Equal(t, SortSpec{
		{Path: "a", Dir: Ascending},
		{Path: "b", Dir: Descending},
		{Path: "c", Dir: Descending},
	}, spec)
}

func TestSortSpecFromRejectsJunk(t *testing.T) {
	_, err := SortSpecFrom(D("a", []any{}))
	assert.ErrorIs(t, err, ErrInvalidSortDirection)
}

func TestNegatePlainValue(t *testing.T) {
	assert.Equal(t, D("age", 30), Negate("age", 30, false))
	assert.Equal(t, D("age", D(Ne, 30)), Negate("age", 30, true))
}

func TestNegatePatternUsesNot(t *testing.T) {
	re := regexp.MustCompile("^S")
	assert.Equal(t, D("name", D(Not, re)), Negate("name", re, true))

	wire := Regex{Pattern: "^S", Flags: "i"}
	assert.Equal(t, D("name", D(Not, wire)), Negate("name", wire, true))
}
