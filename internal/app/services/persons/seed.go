package persons

import (
	"context"
	"time"

	"github.com/R3E-Network/person_service/internal/app/dto"
)

// SampleRecords returns one record of each subtype for local development.
func SampleRecords() []dto.Person {
	return []dto.Person{
		dto.NewPerson(1000, "John", dto.NewDate(1985, time.April, 11),
			dto.Address{City: "Tel Aviv", Street: "Ben Gvirol", Building: 15}),
		dto.NewChild(2000, "Mosche", dto.NewDate(2018, time.July, 5),
			dto.Address{City: "Ashkelon", Street: "Bar Kovha", Building: 21}, "hob goblin"),
		dto.NewEmployee(3000, "Sarah", dto.NewDate(1995, time.November, 23),
			dto.Address{City: "Rehovot", Street: "Herzl", Building: 7}, "Motorola", 20000),
	}
}

// Seed adds each record whose id is still free and returns how many were
// inserted.
func (s *Service) Seed(ctx context.Context, records ...dto.Person) (int, error) {
	inserted := 0
	for _, rec := range records {
		added, err := s.Add(ctx, rec)
		if err != nil {
			return inserted, err
		}
		if added {
			inserted++
		}
	}
	s.log.WithField("inserted", inserted).Info("seed complete")
	return inserted, nil
}
