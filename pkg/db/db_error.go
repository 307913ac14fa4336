package db

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType :
// Defines some convenience named values for common SQL
// errors.
type ErrorType int

// Defines the possible named SQL errors.
const (
	DuplicatedElement ErrorType = iota
	ForeignKeyViolation
	Unknown
)

// ErrInvalidDB :
// Used to indicate that a proxy was asked to perform a
// query or an insertion while not being attached to a
// valid database connection.
var ErrInvalidDB = errors.New("Invalid DB provided to proxy")

// ErrInvalidQuery :
// Used to indicate that the query description provided
// to `FetchFromDB` is not valid (typically because some
// mandatory property is missing).
var ErrInvalidQuery = errors.New("Invalid query provided to proxy")

// ErrInvalidData :
// Used to indicate that some data provided to an insert
// request could not be marshalled to be sent to the DB.
var ErrInvalidData = errors.New("Invalid data provided to proxy")

// formatDBError :
// Used to wrap a raw error returned by the database into
// a more meaningful one by trying to detect some known
// SQL error codes. In case the input error is `nil` this
// function returns `nil` as well.
//
// The `err` defines the error to analyze and wrap.
//
// Returns a wrapped error describing the failure or `nil`
// if the input error is `nil`.
func formatDBError(err error) error {
	if err == nil {
		return nil
	}

	switch GetSQLErrorCode(err.Error()) {
	case DuplicatedElement:
		return fmt.Errorf("%w (err: %v)", ErrDuplicatedElement, err)
	case ForeignKeyViolation:
		return fmt.Errorf("%w (err: %v)", ErrForeignKeyViolation, err)
	default:
		return fmt.Errorf("Unexpected error while accessing DB (err: %v)", err)
	}
}

// ErrDuplicatedElement :
// Used to indicate that the operation failed because it
// would have introduced a duplicated element on a column
// that is subject to a uniqueness constraint.
var ErrDuplicatedElement = errors.New("Duplicated element")

// ErrForeignKeyViolation :
// Used to indicate that the operation failed because it
// would have violated a foreign key constraint.
var ErrForeignKeyViolation = errors.New("Foreign key violation")

// getDuplicatedElementErrorKey :
// Used to retrieve a string describing part of the error
// message issued by the database when trying to insert a
// duplicated element on a unique column. Can be used to
// standardize the definition of this error.
//
// Return part of the error string issued when inserting
// an already existing key.
func getDuplicatedElementErrorKey() string {
	return "SQLSTATE 23505"
}

// getForeignKeyViolationErrorKey :
// Used to retrieve a string describing part of the error
// message issued by the database when trying to insert an
// element that does not match a foreign key constraint.
// Can be used to standardize the definition of this error.
//
// Return part of the error string issued when violating a
// foreign key constraint.
func getForeignKeyViolationErrorKey() string {
	return "SQLSTATE 23503"
}

// GetSQLErrorCode :
// Performs an analysis of the input error string to extract
// a named error code if possible. In case the error does not
// seem to match anything known, the `Unknown` code is sent
// back.
//
// The `errStr` defines the error message to analyze.
//
// Returns the error code for this error or `Unknown` if it
// does not match any known error.
func GetSQLErrorCode(errStr string) ErrorType {
	// Check for all known keys.
	if strings.Contains(errStr, getDuplicatedElementErrorKey()) {
		return DuplicatedElement
	}

	if strings.Contains(errStr, getForeignKeyViolationErrorKey()) {
		return ForeignKeyViolation
	}

	return Unknown
}
