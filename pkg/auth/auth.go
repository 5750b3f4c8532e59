package authentication

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

type IBasicAuthService interface {
	ValidateOperator(username, password string) bool
	ValidateAdmin(username, password string) bool
	DecodeFromHeader(auth string) (string, string)
}

type BasicAuthConfig struct {
	OperatorUsername string
	OperatorPassword string

	AdminUsername string
	AdminPassword string
}

type basicAuth struct {
	operatorUsername string
	operatorPassword string
	adminUsername    string
	adminPassword    string
}

func NewBasicAuthService(config *BasicAuthConfig) IBasicAuthService {
	return &basicAuth{
		operatorUsername: config.OperatorUsername,
		operatorPassword: config.OperatorPassword,
		adminUsername:    config.AdminUsername,
		adminPassword:    config.AdminPassword,
	}
}

// ValidateOperator accepts either operator or admin credentials: an admin
// may run any command an operator can.
func (b *basicAuth) ValidateOperator(username, password string) bool {
	return constantTimeMatch(username, password, b.operatorUsername, b.operatorPassword) ||
		b.ValidateAdmin(username, password)
}

func (b *basicAuth) ValidateAdmin(username, password string) bool {
	return constantTimeMatch(username, password, b.adminUsername, b.adminPassword)
}

func (b *basicAuth) DecodeFromHeader(auth string) (string, string) {
	encoded := strings.TrimPrefix(auth, "Basic ")

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ""
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}

	return parts[0], parts[1]
}

func constantTimeMatch(username, password, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(wantPass)) == 1
	return userOK && passOK
}
