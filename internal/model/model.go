package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the access level of a user account.
type Role uint8

const (
	RoleCustomer Role = iota
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	default:
		return "customer"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer", "user", "":
		return RoleCustomer, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleCustomer, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID            uuid.UUID
	Email         string
	Phone         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	Active        bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Category is one of the fixed catalog sections.
type Category string

const (
	CategoryMedicines      Category = "medicines"
	CategorySupplements    Category = "supplements"
	CategoryPersonalCare   Category = "personal_care"
	CategoryMedicalDevices Category = "medical_devices"
	CategoryAyurvedic      Category = "ayurvedic"
	CategoryBabyCare       Category = "baby_care"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryMedicines, CategorySupplements, CategoryPersonalCare,
		CategoryMedicalDevices, CategoryAyurvedic, CategoryBabyCare:
		return true
	default:
		return false
	}
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	SalesCount  int
	Category    Category
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductFilter narrows product listings. Zero values mean "any".
type ProductFilter struct {
	Search     string
	Category   Category
	ActiveOnly bool
	Sort       string
	Order      string
}

// StockLine is one product quantity handled by the stock ledger.
type StockLine struct {
	ProductID uuid.UUID
	Quantity  int
}
