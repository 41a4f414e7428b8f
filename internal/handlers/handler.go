package handlers

import (
	"github.com/premiumpay/premium-pay-api/internal/services"
)

// Handler serves the account endpoints of every kind. Each method takes the
// kind descriptor and returns the gin handler for that collection.
type Handler struct {
	Accounts *services.AccountService
}

func NewHandler(accounts *services.AccountService) *Handler {
	return &Handler{Accounts: accounts}
}
