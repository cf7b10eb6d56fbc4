package devicetoken

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "medkiosk/pkg/domain-errors"
)

// HashEnrollmentSecret creates a bcrypt hash of the shared enrollment secret.
// Used by operators when provisioning the DEVICE_ENROLLMENT_SECRET_HASH env.
func HashEnrollmentSecret(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", err
	}
	return string(hashed), nil
}

// VerifyEnrollmentSecret checks a presented secret against the stored hash.
func VerifyEnrollmentSecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid enrollment secret")
		}
		return err
	}
	return nil
}
