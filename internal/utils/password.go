// Package utils provides token and password hashing helpers shared by
// the auth handler and middleware.
package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of a password at the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash against a candidate password in
// constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
