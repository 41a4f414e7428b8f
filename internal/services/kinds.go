package services

import (
	"slices"

	"github.com/premiumpay/premium-pay-api/internal/models"
)

// Kind describes one account collection and the rules that apply to it.
type Kind struct {
	Name       string
	Title      string
	Noun       string
	Collection string
	Role       string
	Managers   []string
	// IDKey names the id in update responses, e.g. {"data": {"adminID": ...}}.
	IDKey string
	// ListByRole restricts list results to documents carrying Role.
	ListByRole bool
	// Profile enables birth date, gender, address and description.
	Profile bool
	// LoginFallback lists kinds searched, in order, when the login name is
	// not found in this kind's collection.
	LoginFallback []string
}

const (
	KindUser  = "user"
	KindAdmin = "admin"
	KindSuper = "super"
)

var (
	UserKind = Kind{
		Name:       KindUser,
		Title:      "User",
		Noun:       "A user",
		Collection: "users",
		Role:       models.RoleUser,
		Managers:   []string{models.RoleAdmin, models.RoleSuperAdmin},
		IDKey:      "userID",
		ListByRole: true,
		Profile:    true,
	}
	AdminKind = Kind{
		Name:          KindAdmin,
		Title:         "Admin",
		Noun:          "An admin",
		Collection:    "admins",
		Role:          models.RoleAdmin,
		Managers:      []string{models.RoleSuperAdmin},
		IDKey:         "adminID",
		LoginFallback: []string{KindSuper},
	}
	SuperKind = Kind{
		Name:       KindSuper,
		Title:      "Super admin",
		Noun:       "A super admin",
		Collection: "supers",
		Role:       models.RoleSuperAdmin,
		Managers:   []string{models.RoleSuperAdmin},
		IDKey:      "superID",
	}
)

// Kinds returns the descriptor table in route registration order.
func Kinds() []Kind {
	return []Kind{UserKind, AdminKind, SuperKind}
}

// AnyLoginOrder is the search order of the shared login endpoint.
var AnyLoginOrder = []string{KindUser, KindSuper, KindAdmin}

// CanManage reports whether role may manage this kind's collection.
func (k Kind) CanManage(role string) bool {
	return slices.Contains(k.Managers, role)
}
