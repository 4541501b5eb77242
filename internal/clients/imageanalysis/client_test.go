package imageanalysis

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const insightJSON = `{"ai_insight_title":"Chips","quick_verdict":"High in salt.","why_this_matters":["Fried in palm oil"],"trade_offs":{"positives":[],"negatives":["Sodium"]},"uncertainty":"Serving sizes vary","ai_advice":"Keep portions small."}`

func serve(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/analyze/image", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		got, _ := io.ReadAll(f)
		require.Equal(t, []byte("jpegbytes"), got)
		require.Equal(t, "shot.jpg", hdr.Filename)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := New(nil, Options{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestAnalyze_Structured(t *testing.T) {
	c := serve(t, http.StatusOK, `{"success":true,"analysis":`+insightJSON+`}`)
	res := c.Analyze(context.Background(), []byte("jpegbytes"), "shot.jpg")
	require.True(t, res.Success)
	require.NotNil(t, res.Insight)
	require.Equal(t, "Chips", res.Insight.Title)
	require.Equal(t, "High in salt.", res.Insight.Verdict)
	require.Equal(t, []string{"Sodium"}, res.Insight.Tradeoffs.Negatives)
	require.Equal(t, "Serving sizes vary", *res.Insight.Uncertainty)
	require.Empty(t, res.Text)
}

func TestAnalyze_NarrativeString(t *testing.T) {
	c := serve(t, http.StatusOK, `{"success":true,"analysis":"Looks like a sugary cereal."}`)
	res := c.Analyze(context.Background(), []byte("jpegbytes"), "shot.jpg")
	require.True(t, res.Success)
	require.Nil(t, res.Insight)
	require.Equal(t, "Looks like a sugary cereal.", res.Text)
}

func TestAnalyze_StringCarryingInsight(t *testing.T) {
	quoted := `"` + "```json\\n" + `{\"ai_insight_title\":\"Chips\",\"quick_verdict\":\"v\",\"why_this_matters\":[\"r\"],\"trade_offs\":{\"positives\":[],\"negatives\":[]},\"ai_advice\":\"a\"}` + "\\n```" + `"`
	c := serve(t, http.StatusOK, `{"success":true,"analysis":`+quoted+`}`)
	res := c.Analyze(context.Background(), []byte("jpegbytes"), "shot.jpg")
	require.True(t, res.Success)
	require.NotNil(t, res.Insight)
}

func TestAnalyze_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"unsuccessful": {http.StatusOK, `{"success":false}`},
		"http 500":     {http.StatusInternalServerError, `{"detail":"I couldn't analyze this image right now."}`},
		"malformed":    {http.StatusOK, `{"success":true,"analysis":`},
		"empty":        {http.StatusOK, `{"success":true,"analysis":""}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res := serve(t, tc.status, tc.body).Analyze(context.Background(), []byte("jpegbytes"), "shot.jpg")
			require.False(t, res.Success)
			require.Error(t, res.Err)
		})
	}
}

func TestAnalyze_TransportError(t *testing.T) {
	c, err := New(nil, Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	res := c.Analyze(context.Background(), []byte("x"), "")
	require.False(t, res.Success)
	require.Error(t, res.Err)
}
