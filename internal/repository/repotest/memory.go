// Package repotest provides an in-memory account store for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/premiumpay/premium-pay-api/internal/models"
	"github.com/premiumpay/premium-pay-api/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store mirrors repository.AccountRepository, including its unique indexes.
type Store struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Account

	// FailWith, when set, is returned by every call.
	FailWith error
	// BeforeUpdate, when set, runs at the start of UpdateDetails.
	BeforeUpdate func()
}

func NewStore() *Store {
	return &Store{docs: make(map[primitive.ObjectID]models.Account)}
}

func (s *Store) Insert(_ context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if field := s.conflict(acc); field != "" {
		return &repository.DuplicateKeyError{Field: field}
	}
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now
	s.docs[acc.ID] = *acc
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	acc, ok := s.docs[oid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) FindByLoginName(_ context.Context, loginName string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	for _, acc := range s.docs {
		if acc.LoginName == loginName {
			return &acc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return false, s.FailWith
	}
	for _, acc := range s.docs {
		if acc.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) List(_ context.Context, role string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]models.Account, 0, len(s.docs))
	for _, acc := range s.docs {
		if role == "" || acc.Role == role {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateDetails(_ context.Context, acc *models.Account) error {
	if s.BeforeUpdate != nil {
		s.BeforeUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	stored, ok := s.docs[acc.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if field := s.conflict(acc); field != "" {
		return &repository.DuplicateKeyError{Field: field}
	}
	acc.UpdatedAt = time.Now().UTC()
	stored.FullName = acc.FullName
	stored.PhoneNumber = acc.PhoneNumber
	stored.Email = acc.Email
	stored.ImageURL = acc.ImageURL
	stored.UpdatedAt = acc.UpdatedAt
	if acc.BirthDate != nil {
		stored.BirthDate = acc.BirthDate
	}
	if acc.Gender != "" {
		stored.Gender = acc.Gender
	}
	if acc.Address != nil {
		stored.Address = acc.Address
	}
	if acc.Description != "" {
		stored.Description = acc.Description
	}
	s.docs[acc.ID] = stored
	return nil
}

func (s *Store) SetSession(_ context.Context, id primitive.ObjectID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	acc, ok := s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	acc.SessionID = sessionID
	s.docs[id] = acc
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}
	if _, ok := s.docs[oid]; !ok {
		return repository.ErrNotFound
	}
	delete(s.docs, oid)
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Put stores acc as is, bypassing uniqueness checks.
func (s *Store) Put(acc models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[acc.ID] = acc
}

func (s *Store) conflict(acc *models.Account) string {
	for id, other := range s.docs {
		if id == acc.ID {
			continue
		}
		switch {
		case other.LoginName == acc.LoginName:
			return "loginName"
		case other.PhoneNumber == acc.PhoneNumber:
			return "phoneNumber"
		case other.Email == acc.Email:
			return "email"
		}
	}
	return ""
}
