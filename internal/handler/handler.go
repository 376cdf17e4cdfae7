// Package handler is the first layer after the router.
//
// It binds path parameters, decodes request bodies, calls the service
// layer and maps the outcome (value, absence, failure) onto a status code
// and a JSON envelope.
package handler
