// Package requestid generates correlation ids for outbound requests.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// Header carries the request id on outbound HTTP calls.
const Header = "X-Request-Id"

func New() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Set stamps req with a fresh id unless one is already present and returns
// the id in use.
func Set(req *http.Request) (string, error) {
	if id := req.Header.Get(Header); id != "" {
		return id, nil
	}
	id, err := New()
	if err != nil {
		return "", err
	}
	req.Header.Set(Header, id)
	return id, nil
}
