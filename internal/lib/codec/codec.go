// Package codec holds the JSON plumbing of the HTTP layer: an echo
// serializer backed by goccy/go-json and the strict decoder used for
// record payloads.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/deppfellow/users-api/internal/dberr"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// Serializer implements echo.JSONSerializer with goccy/go-json.
type Serializer struct{}

var _ echo.JSONSerializer = Serializer{}

// Serialize writes i as JSON to the response.
func (Serializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize reads the request body into i.
func (Serializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v, offset=%v", ute.Type, ute.Value, ute.Field, ute.Offset)).SetInternal(err)
	} else if se, ok := err.(*json.SyntaxError); ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Syntax error: offset=%v, error=%v", se.Offset, se.Error())).SetInternal(err)
	}
	return err
}

const decodeOp = "decode"

func malformed(format string, args ...interface{}) error {
	return dberr.New(dberr.MalformedBody, decodeOp, fmt.Sprintf(format, args...))
}

// DecodeObject fully buffers r (at most limit bytes) and decodes it as a
// JSON object.
//
// The body must be valid UTF-8 holding exactly one JSON object. Integral
// numbers become int64 and the rest float64, so they are stored with the
// matching BSON type. Every failure is a dberr MalformedBody.
func DecodeObject(r io.Reader, limit int64) (map[string]interface{}, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, malformed("could not read request body: %v", err)
	}
	if int64(len(data)) > limit {
		return nil, malformed("request body exceeds %d bytes", limit)
	}
	if !utf8.Valid(data) {
		return nil, malformed("request body is not valid UTF-8")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed("request body is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, malformed("request body is not valid JSON: %v", err)
	}
	if err := dec.Decode(new(interface{})); err != io.EOF {
		return nil, malformed("request body must contain a single JSON value")
	}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, malformed("request body must be a JSON object")
	}

	return normalizeNumbers(obj).(map[string]interface{}), nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []interface{}:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	default:
		return v
	}
}
