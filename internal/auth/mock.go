package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MockService stands in for the user service in environments where it is
// not deployed. Profiles are derived from the user id so repeated lookups
// stay stable.
type MockService struct{}

func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) GetUserData(_ context.Context, userID uuid.UUID) (*UserData, error) {
	short := userID.String()[:8]
	return &UserData{
		ID:          userID,
		Email:       fmt.Sprintf("user-%s@example.com", short),
		PhoneNumber: "+10000000000",
		FirstName:   "User",
		LastName:    short,
		TimeZone:    "UTC",
	}, nil
}

func (m *MockService) GetUsersByBirthday(_ context.Context, _, _, page, _ int) ([]uuid.UUID, error) {
	// One deterministic page of results, then exhaustion.
	if page > 1 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.NewMD5(uuid.NameSpaceOID, []byte(fmt.Sprintf("birthday-%d", i)))
	}
	return ids, nil
}
