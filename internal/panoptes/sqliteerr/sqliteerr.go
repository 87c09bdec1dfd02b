// Package sqliteerr registers an error coder for mattn/go-sqlite3. Import it
// for side effects wherever a SQLite handle is audited.
package sqliteerr

import (
	"errors"
	"strconv"

	"github.com/mattn/go-sqlite3"

	"github.com/vaibhaw-/panoptes/internal/panoptes/engine"
)

func init() {
	engine.RegisterErrorCoder(Code)
}

// Code returns the extended result code of a SQLite error, falling back to
// the primary code.
func Code(err error) (string, bool) {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.ExtendedCode != 0 {
		return strconv.Itoa(int(se.ExtendedCode)), true
	}
	return strconv.Itoa(int(se.Code)), true
}
