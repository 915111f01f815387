// Package seed inserts the demo data set used by local and container runs.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/R3E-Network/microblog/internal/app/domain/user"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/pkg/logger"
)

// DemoAPIKey is the fixed api key of the first demo user.
const DemoAPIKey = "test"

var demoNames = []string{
	"Test User",
	"Maya Lindqvist",
	"Omar Haddad",
	"Priya Raman",
	"Lucas Moreau",
}

// UserService is the subset of the users service seeding relies on.
type UserService interface {
	Authenticate(ctx context.Context, apiKey string) (user.User, error)
	Create(ctx context.Context, name, apiKey string) (user.User, error)
}

// Run creates the demo users unless the demo key already resolves, so it is
// safe to call on every start. It returns the users it created.
func Run(ctx context.Context, users UserService, log *logger.Logger) ([]user.User, error) {
	if log == nil {
		log = logger.NewDefault("seed")
	}

	if _, err := users.Authenticate(ctx, DemoAPIKey); err == nil {
		log.Info("demo data already present; skipping seed")
		return nil, nil
	} else if !svcerrors.HasCode(err, svcerrors.CodeAuthentication) {
		return nil, fmt.Errorf("check demo user: %w", err)
	}

	created := make([]user.User, 0, len(demoNames))
	for i, name := range demoNames {
		key := DemoAPIKey
		if i > 0 {
			key = uuid.NewString()
		}
		u, err := users.Create(ctx, name, key)
		if err != nil {
			return created, fmt.Errorf("seed user %q: %w", name, err)
		}
		created = append(created, u)
	}

	log.WithField("users", len(created)).Info("demo data seeded")
	return created, nil
}
