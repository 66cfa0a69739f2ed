package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pelusa-v/pelusa-spaces/internal/devserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	return NewApp(devserver.NewHub(devserver.NewSpaces("general"), nil), "", nil)
}

func postSpace(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/spaces", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v), string(raw))
}

func TestSpacesHandler_ListsDefault(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/spaces", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var spaces []chat.Space
	decode(t, resp, &spaces)
	require.Len(t, spaces, 1)
	assert.Equal(t, "general", spaces[0].ID)
	assert.True(t, spaces[0].IsDefault)
}

func TestCreateSpaceHandler(t *testing.T) {
	app := newTestApp()

	resp := postSpace(t, app, `{"name":"Random","description":"misc","createdBy":"ana"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var sp chat.Space
	decode(t, resp, &sp)
	assert.Equal(t, "random", sp.ID)
	assert.Equal(t, "ana", sp.CreatedBy)

	resp = postSpace(t, app, `{"name":"random"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var e struct {
		Error string `json:"error"`
	}
	decode(t, resp, &e)
	assert.Equal(t, devserver.ErrSpaceExists.Error(), e.Error)

	resp = postSpace(t, app, `{"name":"   "}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postSpace(t, app, `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWSHandler_RequiresUpgrade(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
