package utils

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor used for account passwords.
var PasswordCost = bcrypt.DefaultCost

// HashPassword hashes a given password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with its hashed version in constant time.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
