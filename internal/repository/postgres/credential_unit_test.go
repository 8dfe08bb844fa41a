package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCredentialRepository(t *testing.T) {
	db := &Connection{}
	repo := NewCredentialRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestNewUserRepository(t *testing.T) {
	db := &Connection{}
	repo := NewUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}
