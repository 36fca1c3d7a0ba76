package person

import "time"

// Kind tags the concrete subtype of a person record.
type Kind string

const (
	KindPerson   Kind = "person"
	KindChild    Kind = "child"
	KindEmployee Kind = "employee"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPerson, KindChild, KindEmployee:
		return true
	}
	return false
}

// Address is owned by the person it is embedded in.
type Address struct {
	City     string
	Street   string
	Building int
}

// Person is a stored person record. Subtype-specific data lives in Variant,
// which is always one of Base, Child or Employee.
type Person struct {
	ID        int
	Name      string
	BirthDate time.Time
	Address   Address
	Variant   Variant
}

// Kind returns the tag of the record's variant. A nil variant is a base person.
func (p Person) Kind() Kind {
	if p.Variant == nil {
		return KindPerson
	}
	return p.Variant.Kind()
}

// Variant is the sealed set of subtype payloads.
type Variant interface {
	Kind() Kind
	sealed()
}

// Base carries no extra attributes.
type Base struct{}

// Child adds a hobby.
type Child struct {
	Hobby string
}

// Employee adds the employer and salary.
type Employee struct {
	Company string
	Salary  int
}

func (Base) Kind() Kind     { return KindPerson }
func (Child) Kind() Kind    { return KindChild }
func (Employee) Kind() Kind { return KindEmployee }

func (Base) sealed()     {}
func (Child) sealed()    {}
func (Employee) sealed() {}

// CityPopulation is the number of records located in a city.
type CityPopulation struct {
	City       string
	Population int
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BirthDateRange converts an age window in whole years into the inclusive
// birth date interval [now-maxAge, now-minAge].
func BirthDateRange(now time.Time, minAge, maxAge int) (from, to time.Time) {
	today := Date(now)
	return YearsBefore(today, maxAge), YearsBefore(today, minAge)
}

// YearsBefore moves t back n calendar years. Feb 29 clamps to Feb 28 when the
// target year is not a leap year instead of rolling into March.
func YearsBefore(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	y -= n
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
