package auth

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a short-lived secret such as a one-time sign-in code.
func HashSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret verifies a secret against its hashed value.
func CompareSecret(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
