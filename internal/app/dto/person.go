// Package dto holds the JSON shapes exchanged with HTTP clients.
package dto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DateLayout is the ISO-8601 calendar date format used for birth dates.
const DateLayout = "2006-01-02"

// ErrUnknownType is returned for a body whose "type" is not a known subtype.
var ErrUnknownType = errors.New("unknown person type")

// Type is the wire discriminator.
type Type string

const (
	TypePerson   Type = "person"
	TypeChild    Type = "child"
	TypeEmployee Type = "employee"
)

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate builds a UTC date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("birthDate: %w", err)
	}
	d.Time = t
	return nil
}

// Address is both the embedded address of a person and the body of an
// address update.
type Address struct {
	City     string `json:"city"`
	Street   string `json:"street"`
	Building int    `json:"building"`
}

// Person is the wire representation of any person subtype. Hobby is only
// meaningful for children; Company and Salary only for employees.
type Person struct {
	Type      Type
	ID        int
	Name      string
	BirthDate Date
	Address   Address

	Hobby   string
	Company string
	Salary  int
}

// NewPerson, NewChild and NewEmployee build tagged representations.
func NewPerson(id int, name string, birth Date, addr Address) Person {
	return Person{Type: TypePerson, ID: id, Name: name, BirthDate: birth, Address: addr}
}

func NewChild(id int, name string, birth Date, addr Address, hobby string) Person {
	p := NewPerson(id, name, birth, addr)
	p.Type = TypeChild
	p.Hobby = hobby
	return p
}

func NewEmployee(id int, name string, birth Date, addr Address, company string, salary int) Person {
	p := NewPerson(id, name, birth, addr)
	p.Type = TypeEmployee
	p.Company = company
	p.Salary = salary
	return p
}

// IsZero reports whether p carries nothing at all, the equivalent of an
// absent request body.
func (p Person) IsZero() bool {
	return p == Person{}
}

type personJSON struct {
	Type      Type    `json:"type"`
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	BirthDate Date    `json:"birthDate"`
	Address   Address `json:"address"`
}

type childJSON struct {
	Type      Type    `json:"type"`
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	BirthDate Date    `json:"birthDate"`
	Address   Address `json:"address"`
	Hobby     string  `json:"hobby"`
}

type employeeJSON struct {
	Type      Type    `json:"type"`
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	BirthDate Date    `json:"birthDate"`
	Address   Address `json:"address"`
	Company   string  `json:"company"`
	Salary    int     `json:"salary"`
}

// MarshalJSON writes only the fields of p's own subtype.
func (p Person) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case TypePerson, "":
		return json.Marshal(personJSON{TypePerson, p.ID, p.Name, p.BirthDate, p.Address})
	case TypeChild:
		return json.Marshal(childJSON{p.Type, p.ID, p.Name, p.BirthDate, p.Address, p.Hobby})
	case TypeEmployee:
		return json.Marshal(employeeJSON{p.Type, p.ID, p.Name, p.BirthDate, p.Address, p.Company, p.Salary})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}
}

// UnmarshalJSON accepts an explicit "type". Without one the subtype is
// inferred: hobby means child, company or salary means employee.
func (p *Person) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var raw struct {
		Type      Type    `json:"type"`
		ID        int     `json:"id"`
		Name      string  `json:"name"`
		BirthDate Date    `json:"birthDate"`
		Address   Address `json:"address"`
		Hobby     *string `json:"hobby"`
		Company   *string `json:"company"`
		Salary    *int    `json:"salary"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	typ := Type(strings.ToLower(strings.TrimSpace(string(raw.Type))))
	if typ == "" {
		switch {
		case raw.Hobby != nil:
			typ = TypeChild
		case raw.Company != nil || raw.Salary != nil:
			typ = TypeEmployee
		default:
			typ = TypePerson
		}
	}

	out := NewPerson(raw.ID, raw.Name, raw.BirthDate, raw.Address)
	switch typ {
	case TypePerson:
	case TypeChild:
		out.Type = TypeChild
		out.Hobby = deref(raw.Hobby)
	case TypeEmployee:
		out.Type = TypeEmployee
		out.Company = deref(raw.Company)
		if raw.Salary != nil {
			out.Salary = *raw.Salary
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}
	*p = out
	return nil
}

// CityPopulation is one entry of the population report.
type CityPopulation struct {
	City       string `json:"city"`
	Population int    `json:"population"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
