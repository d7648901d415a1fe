package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sip/scraperworker/config"
	"sip/scraperworker/internal/ingest"
	"sip/scraperworker/services/store"
)

func newTestServer(t *testing.T, secret string) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.LoadConfig()
	cfg.CallbackSecret = secret
	return New(cfg, ingest.NewEngine(st)), st
}

func postResults(t *testing.T, s *Server, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/internal/v1/results", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Scraper-Token", token)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return resp.StatusCode, decoded
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, "")

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestResultsRequiresToken(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	status, body := postResults(t, s, "", map[string]interface{}{"results": []map[string]interface{}{}})
	assert.Equal(t, 401, status)
	assert.Contains(t, body["error"], "token")

	status, _ = postResults(t, s, "wrong", map[string]interface{}{"results": []map[string]interface{}{}})
	assert.Equal(t, 401, status)
}

func TestResultsIngestsCards(t *testing.T) {
	s, st := newTestServer(t, "secret")

	status, body := postResults(t, s, "secret", map[string]interface{}{
		"results": []map[string]interface{}{
			{"shop_id": "1", "shopee_id": "10", "name": "Sepatu", "price": 150000},
			{"shop_id": "1", "shopee_id": "11", "name": "Kemeja", "price": 90000},
			{"name": "no id, skipped"},
		},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, float64(2), body["processed"])

	p, err := st.GetProduct(context.Background(), "10")
	require.NoError(t, err)
	assert.Equal(t, "Sepatu", p.Name)
}

func TestResultsIngestsProducts(t *testing.T) {
	s, _ := newTestServer(t, "")

	status, body := postResults(t, s, "", map[string]interface{}{
		"products": []map[string]interface{}{
			{"shop_id": "1", "shopee_id": "20", "name": "Tas", "price": 50000},
		},
	})
	require.Equal(t, 200, status)
	assert.Equal(t, float64(1), body["processed"])
}

func TestResultsRejectsEmptyPayload(t *testing.T) {
	s, _ := newTestServer(t, "")

	status, _ := postResults(t, s, "", map[string]interface{}{})
	assert.Equal(t, 400, status)
}

func TestResultsRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest("POST", "/internal/v1/results", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
