package openfoodfacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v0/product/8901058851281.json", r.URL.Path)
		require.Contains(t, r.Header.Get("User-Agent"), "foodlens")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":1,"product":{"product_name":"Maggi Masala","brands":"Maggi, Nestle","ingredients_text":"Ingredients: Wheat flour, Palm oil, Salt. Allergens: wheat"}}`))
	}))
	defer srv.Close()

	c, err := New(nil, Options{BaseURL: srv.URL})
	require.NoError(t, err)

	res := c.Lookup(context.Background(), "8901058851281")
	require.True(t, res.Found)
	require.Equal(t, "Maggi Masala", res.Record.Name)
	require.Equal(t, "Maggi", res.Record.Brand)
	require.Equal(t, []string{"Wheat flour", "Palm oil", "Salt"}, res.Record.Ingredients)
}

func TestLookup_FoundWithoutName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":1,"product":{"product_name":"","brands":"Acme","ingredients_text":"Sugar, Palm oil"}}`))
	}))
	defer srv.Close()

	c, err := New(nil, Options{BaseURL: srv.URL})
	require.NoError(t, err)

	res := c.Lookup(context.Background(), "0012345678905")
	require.True(t, res.Found)
	require.Empty(t, res.Record.Name)
	require.Equal(t, "Acme", res.Record.Brand)
	require.Equal(t, []string{"Sugar", "Palm oil"}, res.Record.Ingredients)
}

func TestLookup_NotFoundShapes(t *testing.T) {
	bodies := map[string]struct {
		status int
		body   string
	}{
		"status zero":    {http.StatusOK, `{"status":0,"status_verbose":"product not found"}`},
		"missing status": {http.StatusOK, `{"product":{"product_name":"Ghost"}}`},
		"http 503":       {http.StatusServiceUnavailable, `oops`},
		"garbage body":   {http.StatusOK, `<html>`},
	}
	for name, tc := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := New(nil, Options{BaseURL: srv.URL})
			require.False(t, c.Lookup(context.Background(), "0000000000000").Found)
		})
	}
}
