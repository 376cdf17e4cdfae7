package handler

import "github.com/deppfellow/users-api/internal/validation"

// EmptyRequest is the payload of routes without path parameters.
type EmptyRequest struct{}

func (r *EmptyRequest) Validate() error {
	return nil
}

func newEmptyRequest() *EmptyRequest {
	return &EmptyRequest{}
}

// UserIDRequest carries the id path parameter. Its format is checked by
// the store, which reports InvalidIdentifier.
type UserIDRequest struct {
	ID string `param:"id" validate:"required"`
}

func (r *UserIDRequest) Validate() error {
	return validation.Struct(r)
}

func newUserIDRequest() *UserIDRequest {
	return &UserIDRequest{}
}
