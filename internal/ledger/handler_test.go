package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, state *memState) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := &memRepo{state: state}
	svc := NewService(repo, &Resolver{}, nil, testLogger())
	h := NewHandler(testLogger(), svc, nil)

	r := chi.NewRouter()
	r.Route("/api/ledger", h.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

const purchaseBody = `{
	"company_id": 1,
	"event_type": "COMPRA",
	"date": "2025-03-15",
	"memo": "Factura F001-123",
	"operation_data": {"base": 100}
}`

func TestHandlerGenerate(t *testing.T) {
	state, _, _, _ := purchaseState(t)
	srv, repo := newTestServer(t, state)

	resp, err := http.Post(srv.URL+"/api/ledger/entries", "application/json", strings.NewReader(purchaseBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body entryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "118.00", body.TotalDebit)
	require.Equal(t, "118.00", body.TotalCredit)
	require.Equal(t, "POSTED", body.Status)
	require.Equal(t, "PEN", body.Currency)
	require.Len(t, body.Lines, 3)
	require.Equal(t, "100.00", body.Lines[0].Debit)
	require.Equal(t, "118.00", body.Lines[2].Credit)

	require.Len(t, repo.state.entries, 1)
}

func TestHandlerSimulate(t *testing.T) {
	state, _, _, _ := purchaseState(t)
	srv, repo := newTestServer(t, state)

	resp, err := http.Post(srv.URL+"/api/ledger/simulations", "application/json", strings.NewReader(purchaseBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body simulationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Balanced)
	require.Equal(t, "Compra de mercadería", body.EventName)
	require.Len(t, body.Lines, 3)

	require.Empty(t, repo.state.entries)
}

func TestHandlerGet(t *testing.T) {
	state, _, _, _ := purchaseState(t)
	srv, repo := newTestServer(t, state)

	resp, err := http.Post(srv.URL+"/api/ledger/entries", "application/json", strings.NewReader(purchaseBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	entryID := repo.state.entries[0].ID

	resp, err = http.Get(srv.URL + "/api/ledger/entries/" + strconv.FormatInt(entryID, 10))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body entryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, entryID, body.ID)
	require.Len(t, body.Lines, 3)
}

func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*memState)
		path   string
		body   string
		status int
	}{
		{
			name:   "malformed json",
			path:   "/api/ledger/entries",
			body:   `{"company_id":`,
			status: http.StatusBadRequest,
		},
		{
			name:   "validation failure",
			path:   "/api/ledger/entries",
			body:   `{"company_id":1,"event_type":"COMPRA","date":"15/03/2025","operation_data":{"base":100}}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown event",
			path: "/api/ledger/entries",
			body: strings.Replace(purchaseBody, "COMPRA", "VENTA", 1),
			// Missing configuration reads as not found.
			status: http.StatusNotFound,
		},
		{
			name:   "closed period",
			mutate: func(s *memState) { s.closePeriod(1, 2025, 3) },
			path:   "/api/ledger/entries",
			body:   purchaseBody,
			status: http.StatusConflict,
		},
		{
			name:   "empty assembly",
			path:   "/api/ledger/entries",
			body:   strings.Replace(purchaseBody, `{"base": 100}`, `{"base": 0}`, 1),
			status: http.StatusUnprocessableEntity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, _, _, _ := purchaseState(t)
			if tc.mutate != nil {
				tc.mutate(state)
			}
			srv, _ := newTestServer(t, state)

			resp, err := http.Post(srv.URL+tc.path, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)
			require.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")
		})
	}
}

func TestHandlerGetServesCachedEntry(t *testing.T) {
	state, _, _, _ := purchaseState(t)
	repo := &memRepo{state: state}
	svc := NewService(repo, &Resolver{}, nil, testLogger())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	h := NewHandler(testLogger(), svc, nil).WithCache(client)

	r := chi.NewRouter()
	r.Route("/api/ledger", h.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/ledger/entries", "application/json", strings.NewReader(purchaseBody))
	require.NoError(t, err)
	resp.Body.Close()
	entryID := repo.state.entries[0].ID
	url := srv.URL + "/api/ledger/entries/" + strconv.FormatInt(entryID, 10)

	resp, err = http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Drop the backing row; the cached copy must still serve.
	repo.state.entries = nil
	resp, err = http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body entryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, entryID, body.ID)
	require.Len(t, body.Lines, 3)
}

func TestHandlerGetUnknownEntry(t *testing.T) {
	state, _, _, _ := purchaseState(t)
	srv, _ := newTestServer(t, state)

	resp, err := http.Get(srv.URL + "/api/ledger/entries/424242")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/ledger/entries/zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
