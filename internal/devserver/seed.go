package devserver

import (
	"context"
	"fmt"

	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// SeedData lists accounts and contact requests loaded at startup
type SeedData struct {
	Users    []service.RegisterRequest
	Requests []service.CreateRequestRequest
}

// DefaultPassword is the password of every seeded account
const DefaultPassword = "password"

// DefaultSeed is a small marketplace: two students, two tutors and three contact requests
func DefaultSeed() *SeedData {
	return &SeedData{
		Users: []service.RegisterRequest{
			{UserId: "s1", Name: "Sam Student", Role: constant.RoleStudent, Password: DefaultPassword},
			{UserId: "s2", Name: "Sasha Student", Role: constant.RoleStudent, Password: DefaultPassword},
			{UserId: "t1", Name: "Toni Tutor", Role: constant.RoleTutor, Password: DefaultPassword},
			{UserId: "t2", Name: "Taylor Tutor", Role: constant.RoleTutor, Password: DefaultPassword},
		},
		Requests: []service.CreateRequestRequest{
			{RequestId: "r1", StudentId: "s1", TutorId: "t1", Subject: "Algebra"},
			{RequestId: "r2", StudentId: "s1", TutorId: "t2", Subject: "Chemistry"},
			{RequestId: "r3", StudentId: "s2", TutorId: "t1", Subject: "Geometry"},
		},
	}
}

// Seed registers users and contact requests
func (s *Server) Seed(ctx context.Context, data *SeedData) error {
	for i := range data.Users {
		if _, err := s.auth.Register(ctx, &data.Users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", data.Users[i].UserId, err)
		}
	}
	for i := range data.Requests {
		if _, err := s.convs.CreateRequest(ctx, &data.Requests[i]); err != nil {
			return fmt.Errorf("seed request %s: %w", data.Requests[i].RequestId, err)
		}
	}
	return nil
}
