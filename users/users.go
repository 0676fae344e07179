package users

import (
	"golang.org/x/crypto/bcrypt"
)

// ProfilesTable is the table the profile record is written to after sign-up.
const ProfilesTable = "users"

type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// Profile is the account record kept alongside the secondary identity.
type Profile struct {
	ID            string    `json:"id"`             // Secondary provider's identity id
	Email         string    `json:"email"`          // User's email address
	FullName      string    `json:"full_name"`      // Display name captured at sign-up
	WalletBalance int64     `json:"wallet_balance"` // Balance in minor currency units
	KYCStatus     KYCStatus `json:"kyc_status"`     // Identity verification state
}

// NewProfile returns the initial profile for a freshly created account.
func NewProfile(id, email, fullName string) Profile {
	return Profile{
		ID:            id,
		Email:         email,
		FullName:      fullName,
		WalletBalance: 0,
		KYCStatus:     KYCPending,
	}
}

// Row returns the profile as column values for a generic row insert.
func (p Profile) Row() map[string]any {
	return map[string]any{
		"id":             p.ID,
		"email":          p.Email,
		"full_name":      p.FullName,
		"wallet_balance": p.WalletBalance,
		"kyc_status":     string(p.KYCStatus),
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
