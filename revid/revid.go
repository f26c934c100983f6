// Package revid generates and validates revision identifiers.
package revid

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var ErrInvalidLength = errors.New("length must be greater than 0")

const (
	// Len is the length of generated revision identifiers.
	Len = 12

	alphabet = "0123456789abcdef"
)

// New returns a securely generated random revision id of the default length.
func New() (string, error) {
	return NewWithLength(Len)
}

// NewWithLength returns a securely generated random revision id of length n.
// It will return an error if the system's secure random
// number generator fails to function correctly.
func NewWithLength(n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}

	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}

		ret[i] = alphabet[num.Int64()]
	}

	return string(ret), nil
}

// Valid reports whether id is usable as a revision identifier:
// non-empty, lowercase alphanumeric only.
//
// Ids derived from file names may be shorter than [Len], e.g. "001".
func Valid(id string) bool {
	if len(id) == 0 {
		return false
	}

	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}

	return true
}
