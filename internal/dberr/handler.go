package dberr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/deppfellow/users-api/internal/errs"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// dupKeyIndex extracts the index name from an E11000 message, e.g.
// "... index: email_1 dup key: { email: \"a@x.io\" }".
var dupKeyIndex = regexp.MustCompile(`index: ([A-Za-z0-9_.]+?)_-?1(?:_|\s)`)

// Classify converts a raw driver error returned by op into an *Error.
//
// fallback is the code used when nothing more specific applies; read
// operations pass Other, write operations pass WriteFailure.
//
// Output:
//   - nil stays nil
//   - *Error is returned unchanged
//   - deadline/timeout errors become Timeout
//   - duplicate key errors become DuplicateKey with a friendly message
//   - network and disconnect errors become ServiceUnavailable
//   - everything else becomes fallback
func Classify(op, collection string, err error, fallback Code) error {
	if err == nil {
		return nil
	}

	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}

	var classified *Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		classified = Wrap(Timeout, op, err)
		classified.Message = fmt.Sprintf("%s: operation timed out", op)

	case mongo.IsDuplicateKeyError(err):
		classified = Wrap(DuplicateKey, op, err)
		classified.Message = duplicateKeyMessage(collection, err)

	case errors.Is(err, mongo.ErrClientDisconnected), mongo.IsNetworkError(err):
		classified = Wrap(ServiceUnavailable, op, err)

	default:
		classified = Wrap(fallback, op, err)
	}

	classified.Collection = collection
	return classified
}

// duplicateKeyMessage produces an end-user-facing message for a unique
// index violation.
func duplicateKeyMessage(collection string, err error) string {
	entity := humanizeText(singular(collection))
	if entity == "" {
		entity = "Record"
	}

	field := ""
	if m := dupKeyIndex.FindStringSubmatch(err.Error() + " "); len(m) > 1 {
		field = strings.ToLower(humanizeText(m[1]))
	}
	if field == "" {
		field = "identifier"
	}

	return fmt.Sprintf("A %s with this %s already exists", strings.ToLower(entity), field)
}

// generateErrorCode creates consistent application error codes, e.g.
// users + DuplicateKey => USER_ALREADY_EXISTS.
func generateErrorCode(collection string, code Code) string {
	domain := strings.ToUpper(singular(collection))
	if domain == "" {
		domain = "RECORD"
	}

	action := "ERROR"
	switch code {
	case DuplicateKey:
		action = "ALREADY_EXISTS"
	case InvalidIdentifier:
		action = "INVALID_ID"
	}

	return fmt.Sprintf("%s_%s", domain, action)
}

// singular crudely drops a trailing "s": "users" -> "user".
func singular(name string) string {
	if strings.HasSuffix(name, "s") && len(name) > 1 {
		return name[:len(name)-1]
	}
	return name
}

// humanizeText converts snake_case into Title Case: "first_name" -> "First Name".
func humanizeText(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}

// HandleError converts a store error into an application-level HTTP error.
//
// It is used by the global error handler for errors that escape a handler
// without being rendered as an envelope.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var dbErr *Error
	if !errors.As(err, &dbErr) {
		if ErrCode(err) == Timeout {
			return errs.New(http.StatusGatewayTimeout, "The request timed out", false)
		}
		return errs.NewInternalServerError()
	}

	switch dbErr.Code {
	case DuplicateKey:
		code := generateErrorCode(dbErr.Collection, dbErr.Code)
		return errs.NewBadRequestError(dbErr.Message, true, &code, nil)
	case InvalidIdentifier:
		code := generateErrorCode(dbErr.Collection, dbErr.Code)
		return errs.NewBadRequestError(dbErr.Message, true, &code, nil)
	case MalformedBody:
		return errs.NewBadRequestError(dbErr.Message, true, nil, nil)
	case ServiceUnavailable, ConnectionFailure:
		return errs.NewServiceUnavailableError("The database is currently unavailable")
	case Timeout:
		return errs.New(http.StatusGatewayTimeout, "The request timed out", false)
	default:
		return errs.NewInternalServerError()
	}
}
