package validators

import (
	"errors"
	"strings"
)

var ErrInvalidPath = errors.New("invalid object path")

// ObjectKey normalizes a caller supplied object path. A leading slash is
// dropped; empty, "." and ".." segments, backslashes and NUL bytes are
// rejected so a path can never climb out of the dataset it's resolved against.
func ObjectKey(p string) (string, error) {
	p = strings.TrimLeft(p, "/")
	if p == "" || strings.ContainsAny(p, "\\\x00") {
		return "", ErrInvalidPath
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidPath
		}
	}

	return p, nil
}
