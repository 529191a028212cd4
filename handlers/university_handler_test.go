package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func universitiesResponse(t *testing.T, app *fiber.App, url string) []University {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Universities []University `json:"universities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Universities
}

func TestGetUniversities(t *testing.T) {
	app := fiber.New()
	app.Get("/universities", GetUniversities)

	all := universitiesResponse(t, app, "/universities")
	assert.Len(t, all, len(universities))
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Name, all[i].Name)
	}

	canadian := universitiesResponse(t, app, "/universities?country=CA")
	require.NotEmpty(t, canadian)
	for _, u := range canadian {
		assert.Equal(t, "CA", u.Country)
	}

	// Search matches name or short name, case-insensitively.
	byName := universitiesResponse(t, app, "/universities?search=michigan")
	require.Len(t, byName, 1)
	assert.Equal(t, "umich", byName[0].ID)

	byShortName := universitiesResponse(t, app, "/universities?search=nyu")
	require.Len(t, byShortName, 1)
	assert.Equal(t, "New York University", byShortName[0].Name)

	none := universitiesResponse(t, app, "/universities?search=oxford")
	assert.Empty(t, none)
}
