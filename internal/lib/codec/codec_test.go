package codec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/users-api/internal/dberr"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	got, err := DecodeObject(strings.NewReader(`{"name":"Ada","age":36,"score":9.5,"big":1e3,"tags":["a",1],"addr":{"zip":12345},"ok":true,"nick":null}`), 1<<10)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"name":  "Ada",
		"age":   int64(36),
		"score": 9.5,
		"big":   float64(1000),
		"tags":  []interface{}{"a", int64(1)},
		"addr":  map[string]interface{}{"zip": int64(12345)},
		"ok":    true,
		"nick":  nil,
	}, got)
}

func TestDecodeObject_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "empty"},
		{"whitespace", "  \n", "empty"},
		{"syntax", `{"name":`, "not valid JSON"},
		{"array", `[1,2]`, "JSON object"},
		{"string", `"Ada"`, "JSON object"},
		{"null", `null`, "JSON object"},
		{"trailing", `{"a":1}{"b":2}`, "single JSON value"},
		{"invalid utf8", "{\"name\":\"\xff\xfe\"}", "UTF-8"},
		{"too large", `{"name":"` + strings.Repeat("x", 64) + `"}`, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObject(strings.NewReader(tt.body), 32)
			require.Error(t, err)
			assert.Equal(t, dberr.MalformedBody, dberr.ErrCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSerializer(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = Serializer{}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, c.JSON(http.StatusOK, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())

	var out struct {
		N int `json:"n"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())
	require.NoError(t, c.Bind(&out))
	assert.Equal(t, 2, out.N)
}

func TestSerializer_SyntaxError(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = Serializer{}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"n":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var out map[string]interface{}
	err := c.Bind(&out)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
