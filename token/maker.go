package token

import (
	"time"

	"github.com/google/uuid"
)

// Maker creates and verifies access tokens. Keeping it behind an interface
// lets tests substitute a stub maker.
type Maker interface {
	CreateToken(email string, organizationID uuid.UUID, duration time.Duration) (string, error)

	VerifyToken(token string) (*Payload, error)
}
