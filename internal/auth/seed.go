package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the demo owner password.
const seedPasswordBytes = 16

// SeedDemoCompany provisions a demo company with an owner account on first
// boot of a development instance, if no companies exist yet. The generated
// password is logged once and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func SeedDemoCompany(ctx context.Context, engine *Engine, companyRepo CompanyRepository, logger *slog.Logger) (string, error) {
	count, err := companyRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking company count: %w", err)
	}

	if count > 0 {
		logger.Info("companies exist, skipping demo seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	bundle, err := engine.Register(ctx, RegisterRequest{
		CompanyName:  "Demo Legal",
		CompanyEmail: "demo@demo-legal.example",
		FirstName:    "Demo",
		LastName:     "Owner",
		Email:        "owner@demo-legal.example",
		Password:     password,
	})
	if err != nil {
		return "", fmt.Errorf("creating demo company: %w", err)
	}

	logger.Warn("demo company seeded",
		"company_id", bundle.Company.ID,
		"email", bundle.User.Email,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
