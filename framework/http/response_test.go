package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-tenancy/framework/container"
	gohttp "github.com/km-arc/go-tenancy/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	return m
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "val", decodeJSON(t, rr)["key"])
}

func TestResponse_Envelopes(t *testing.T) {
	tests := []struct {
		name   string
		send   func(*gohttp.Response)
		status int
		key    string
	}{
		{"Success", func(r *gohttp.Response) { r.Success(1) }, http.StatusOK, "data"},
		{"Created", func(r *gohttp.Response) { r.Created(1) }, http.StatusCreated, "data"},
		{"Error", func(r *gohttp.Response) { r.Error(http.StatusConflict, "Taken.") }, http.StatusConflict, "message"},
		{"BadRequest", func(r *gohttp.Response) { r.BadRequest() }, http.StatusBadRequest, "message"},
		{"NotFound", func(r *gohttp.Response) { r.NotFound() }, http.StatusNotFound, "message"},
		{"ServerError", func(r *gohttp.Response) { r.ServerError() }, http.StatusInternalServerError, "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			tt.send(res)
			assert.Equal(t, tt.status, rr.Code)
			assert.Contains(t, decodeJSON(t, rr), tt.key)
		})
	}
}

func TestResponse_DefaultMessages(t *testing.T) {
	res, rr := newResponse(t)
	res.NotFound()
	assert.Equal(t, "Not found.", decodeJSON(t, rr)["message"])

	res, rr = newResponse(t)
	res.NotFound("No such tenant.")
	assert.Equal(t, "No such tenant.", decodeJSON(t, rr)["message"])
}

func TestResponse_NoContent(t *testing.T) {
	res, rr := newResponse(t)
	res.NoContent()
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, rr.Body.Len())
}

func TestResponse_YAML(t *testing.T) {
	res, rr := newResponse(t)
	res.YAML(http.StatusOK, struct {
		Name string `json:"name"`
	}{Name: "acme"})

	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Equal(t, "name: acme\n", rr.Body.String())
}

// ── ServiceError ─────────────────────────────────────────────────────────────

type loop struct{}

func TestResponse_ServiceError(t *testing.T) {
	services := container.NewCollection()
	services.Add(container.Singleton[*loop](func(*loop) *loop { return &loop{} }))
	c, err := container.Build[string](services)
	require.NoError(t, err)

	_, err = container.ResolveShared[*loop](c)
	require.Error(t, err)

	res, rr := newResponse(t)
	res.ServiceError(err)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeJSON(t, rr)
	assert.Equal(t, container.ErrCircularDependency.Error(), body["kind"])
	assert.Equal(t, "*http_test.loop", body["service"])
	assert.NotEmpty(t, body["path"])
}

func TestResponse_ServiceErrorDisposed(t *testing.T) {
	c, err := container.Build[string](container.NewCollection())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.GetSharedService(reflect.TypeFor[*loop]())
	require.Error(t, err)

	res, rr := newResponse(t)
	res.ServiceError(err)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestResponse_ServiceErrorPlain(t *testing.T) {
	res, rr := newResponse(t)
	res.ServiceError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "boom", decodeJSON(t, rr)["message"])
}
