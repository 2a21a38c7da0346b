package main

import (
	"fmt"
	"testing"

	"travelmate/backend/internal/config"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestFailureFields(t *testing.T) {
	plain := failureFields("stats", fmt.Errorf("users: %w", assert.AnError))
	assert.Equal(t, "stats", plain["command"])
	assert.Contains(t, plain["error"], assert.AnError.Error())
	assert.NotContains(t, plain, "pg_code")

	wrapped := fmt.Errorf("purge: %w", &pq.Error{Code: "42P01", Message: `relation "users" does not exist`})
	fields := failureFields("purge-pair", wrapped)
	assert.Equal(t, `relation "users" does not exist`, fields["error"])
	assert.Equal(t, "42P01", fields["pg_code"])
}

func TestIssueToken(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "admin-secret"}}

	assert.Error(t, issueToken(cfg, nil))
	assert.Error(t, issueToken(cfg, []string{"u1", "0"}))
	assert.Error(t, issueToken(cfg, []string{"u1", "soon"}))
	assert.NoError(t, issueToken(cfg, []string{"u1", "2"}))
}
