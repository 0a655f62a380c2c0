// Package repository provides test doubles for the repository contracts.
package repository

import (
	"context"

	"warden/internal/domain/repository"
)

// TransactionManager runs the callback directly against Factory.
// Returning an error from the callback is reported as-is, the way a rollback would be.
type TransactionManager struct {
	Factory repository.RepositoryFactory
	Calls   int
}

func NewTransactionManager(userRepo repository.UserRepository) *TransactionManager {
	return &TransactionManager{Factory: &RepositoryFactory{UserRepo: userRepo}}
}

func (m *TransactionManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.Calls++

	return fn(m.Factory)
}

type RepositoryFactory struct {
	UserRepo repository.UserRepository
}

func (f *RepositoryFactory) NewUserRepository() repository.UserRepository {
	return f.UserRepo
}
