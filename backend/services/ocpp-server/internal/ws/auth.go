package ws

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuth checks HTTP Basic credentials presented at upgrade time
// (OCPP 1.6 security profile 1). The username must equal the charge point id.
type BasicAuth struct {
	hashes map[string]string
}

// NewBasicAuth returns nil when hashes is empty, which disables the check.
func NewBasicAuth(hashes map[string]string) *BasicAuth {
	if len(hashes) == 0 {
		return nil
	}
	copied := make(map[string]string, len(hashes))
	for id, hash := range hashes {
		copied[id] = hash
	}
	return &BasicAuth{hashes: copied}
}

// Allow reports whether r carries valid credentials for chargePointID.
func (a *BasicAuth) Allow(r *http.Request, chargePointID string) bool {
	if a == nil {
		return true
	}
	username, password, ok := r.BasicAuth()
	if !ok || username != chargePointID {
		return false
	}
	hash, ok := a.hashes[chargePointID]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
