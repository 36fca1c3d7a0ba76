package persons

import (
	"fmt"

	"github.com/R3E-Network/person_service/internal/app/domain/person"
	"github.com/R3E-Network/person_service/internal/app/dto"
)

func toEntity(p dto.Person) person.Person {
	out := person.Person{
		ID:        p.ID,
		Name:      p.Name,
		BirthDate: person.Date(p.BirthDate.Time),
		Address:   addressToEntity(p.Address),
	}
	switch p.Type {
	case dto.TypePerson, "":
		out.Variant = person.Base{}
	case dto.TypeChild:
		out.Variant = person.Child{Hobby: p.Hobby}
	case dto.TypeEmployee:
		out.Variant = person.Employee{Company: p.Company, Salary: p.Salary}
	default:
		panic(fmt.Sprintf("persons: no entity variant for type %q", p.Type))
	}
	return out
}

func toDTO(p person.Person) dto.Person {
	birth := dto.Date{Time: p.BirthDate}
	addr := addressToDTO(p.Address)
	switch v := p.Variant.(type) {
	case nil, person.Base:
		return dto.NewPerson(p.ID, p.Name, birth, addr)
	case person.Child:
		return dto.NewChild(p.ID, p.Name, birth, addr, v.Hobby)
	case person.Employee:
		return dto.NewEmployee(p.ID, p.Name, birth, addr, v.Company, v.Salary)
	default:
		panic(fmt.Sprintf("persons: no wire type for variant %T", v))
	}
}

func toDTOs(list []person.Person) []dto.Person {
	out := make([]dto.Person, 0, len(list))
	for _, p := range list {
		out = append(out, toDTO(p))
	}
	return out
}

func addressToEntity(a dto.Address) person.Address {
	return person.Address{City: a.City, Street: a.Street, Building: a.Building}
}

func addressToDTO(a person.Address) dto.Address {
	return dto.Address{City: a.City, Street: a.Street, Building: a.Building}
}

func populationToDTO(list []person.CityPopulation) []dto.CityPopulation {
	out := make([]dto.CityPopulation, 0, len(list))
	for _, c := range list {
		out = append(out, dto.CityPopulation{City: c.City, Population: c.Population})
	}
	return out
}
