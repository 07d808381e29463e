package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
)

type BasicAuthEngine struct {
	Username string
	Password string
	Realm    string
}

var _ AuthEngine = (*BasicAuthEngine)(nil)

// NewBasicAuthEngine creates a new BasicAuthEngine accepting exactly one
// username/password pair.
func NewBasicAuthEngine(username string, password string) (*BasicAuthEngine, error) {
	if username == "" || password == "" {
		return nil, errors.New("basic auth requires both username and password")
	}

	return &BasicAuthEngine{
		Username: username,
		Password: password,
		Realm:    "filedrop",
	}, nil
}

// AuthenticateRequest checks the Authorization header for valid Basic Auth
// credentials. It returns true if the credentials are valid, false otherwise.
func (e *BasicAuthEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (bool, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false, nil
	}

	// Compare both fields even when the first differs so timing does not
	// reveal which one was wrong.
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(e.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(e.Password)) == 1

	return userOK && passOK, nil
}

func (e *BasicAuthEngine) Challenge() string {
	return `Basic realm="` + e.Realm + `", charset="UTF-8"`
}
