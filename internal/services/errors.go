package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/repository"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorage         = errors.New("storage failure")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnauthorized    = errors.New("invalid username or password")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storageErr classifies a repository error: a missing row becomes NotFound
// naming what was looked up, anything else is a storage failure.
func storageErr(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, what, err)
}

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, invalidf("invalid %s ID %q", kind, id)
	}
	return parsed, nil
}
