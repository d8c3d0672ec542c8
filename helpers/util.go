package helpers

import (
	"errors"
	"strings"
)

// ErrMalformedCredentials is returned when a key is not "id<sep>secret"
var ErrMalformedCredentials = errors.New("malformed credentials")

// SplitCredentials splits a "clientId:clientSecret" style key at the first
// separator. The secret may itself contain the separator.
func SplitCredentials(key, sep string) (id, secret string, err error) {
	id, secret, found := strings.Cut(strings.TrimSpace(key), sep)
	if !found || id == "" || secret == "" {
		return "", "", ErrMalformedCredentials
	}
	return id, secret, nil
}
