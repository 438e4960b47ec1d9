package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const membershipIDAttempts = 5

// MembershipIDGenerator produces human-facing identifiers of the form
// SOCCOS-{YY}{MM}-{NNNN}.
type MembershipIDGenerator struct {
	now    func() time.Time
	suffix func() int
}

// NewMembershipIDGenerator returns a generator using the wall clock and a random suffix.
func NewMembershipIDGenerator() *MembershipIDGenerator {
	return &MembershipIDGenerator{
		now:    time.Now,
		suffix: func() int { return 1000 + rand.IntN(9000) },
	}
}

// Next returns a candidate identifier for the current month.
func (g *MembershipIDGenerator) Next() string {
	now := g.now()
	return fmt.Sprintf("SOCCOS-%02d%02d-%04d", now.Year()%100, int(now.Month()), g.suffix())
}

// Unique draws candidates until exists reports a free one.
func (g *MembershipIDGenerator) Unique(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < membershipIDAttempts; i++ {
		candidate := g.Next()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", internalError("checking membership id", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrMembershipIDExhausted
}
