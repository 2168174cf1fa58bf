package auth

import "golang.org/x/crypto/bcrypt"

// AdminVerifier checks dashboard requests against the operator token
// configured at startup. Only a bcrypt hash of the token is retained.
type AdminVerifier struct {
	hash []byte
}

func NewAdminVerifier(token string) (*AdminVerifier, error) {
	if token == "" {
		return &AdminVerifier{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	return &AdminVerifier{hash: hash}, nil
}

// Enabled reports whether an admin token was configured. When false the
// whole admin surface is served as unavailable.
func (v *AdminVerifier) Enabled() bool {
	return len(v.hash) > 0
}

func (v *AdminVerifier) Verify(token string) bool {
	if !v.Enabled() || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(token)) == nil
}
