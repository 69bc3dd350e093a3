package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexdb/vexdb/internal/domain"
	"github.com/vexdb/vexdb/internal/engine"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := engine.NewStore(nil, nil)
	handler := NewHandler(store, nil)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, resp.Body.Close())
	return resp, envelope
}

func createDemo(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections",
		domain.CreateCollectionRequest{Name: "demo", Dims: 4, Metric: "cosine"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)
}

func upsertDemoPoints(t *testing.T, srv *httptest.Server) {
	t.Helper()
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.7, 0.7, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	points := make([]domain.Point, len(vectors))
	for i, v := range vectors {
		points[i] = domain.Point{
			ID:          fmt.Sprintf("p%d", i),
			Vector:      v,
			PayloadJSON: fmt.Sprintf(`{"i":%d}`, i),
		}
	}

	resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points",
		domain.UpsertRequest{Points: points})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)
}

func decodeData[T any](t *testing.T, envelope Response) T {
	t.Helper()
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestCollectionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	t.Run("create", func(t *testing.T) {
		createDemo(t, srv)
	})

	t.Run("identical create conflicts", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections",
			domain.CreateCollectionRequest{Name: "demo", Dims: 4, Metric: "cosine"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.False(t, envelope.Success)
		assert.Equal(t, "already_exists", envelope.Code)
	})

	t.Run("invalid dims", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections",
			domain.CreateCollectionRequest{Name: "bad", Dims: 0, Metric: "cosine"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_argument", envelope.Code)
	})

	t.Run("unknown metric", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections",
			domain.CreateCollectionRequest{Name: "bad", Dims: 4, Metric: "hamming"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_argument", envelope.Code)
	})

	t.Run("list and describe", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodGet, "/api/v1/collections", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		infos := decodeData[[]domain.CollectionInfo](t, envelope)
		require.Len(t, infos, 1)
		assert.Equal(t, "demo", infos[0].Name)

		resp, envelope = doJSON(t, srv, http.MethodGet, "/api/v1/collections/demo", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		info := decodeData[domain.CollectionInfo](t, envelope)
		assert.Equal(t, domain.CollectionInfo{Name: "demo", Dims: 4, Metric: "cosine", Points: 0}, info)
	})

	t.Run("drop", func(t *testing.T) {
		resp, _ := doJSON(t, srv, http.MethodDelete, "/api/v1/collections/demo", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, envelope := doJSON(t, srv, http.MethodDelete, "/api/v1/collections/demo", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", envelope.Code)
	})
}

func TestUpsertEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createDemo(t, srv)

	t.Run("counts upserted points", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points",
			domain.UpsertRequest{Points: []domain.Point{
				{ID: "a", Vector: []float32{1, 0, 0, 0}},
				{Vector: []float32{0, 1, 0, 0}},
			}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decodeData[domain.UpsertResponse](t, envelope)
		assert.EqualValues(t, 2, result.Upserted)
	})

	t.Run("unknown collection", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/missing/points",
			domain.UpsertRequest{Points: []domain.Point{{ID: "a", Vector: []float32{1, 0, 0, 0}}}})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", envelope.Code)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points",
			domain.UpsertRequest{Points: []domain.Point{{ID: "x", Vector: []float32{1, 0}}}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_argument", envelope.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/collections/demo/points",
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestQueryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createDemo(t, srv)
	upsertDemoPoints(t, srv)

	t.Run("sample client flow", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points/query",
			domain.QueryRequest{Vector: []float32{0.8, 0.2, 0, 0}, TopK: 3, WithPayloads: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		result := decodeData[domain.QueryResponse](t, envelope)
		require.Len(t, result.Hits, 3)
		assert.Equal(t, "p3", result.Hits[0].ID)
		assert.Equal(t, "p0", result.Hits[1].ID)
		assert.Equal(t, `{"i":3}`, result.Hits[0].PayloadJSON)
		for i := 1; i < len(result.Hits); i++ {
			assert.GreaterOrEqual(t, result.Hits[i-1].Score, result.Hits[i].Score)
		}
	})

	t.Run("filter with unmatched key returns zero hits", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points/query",
			domain.QueryRequest{
				Vector:  []float32{0.8, 0.2, 0, 0},
				TopK:    3,
				Filters: []domain.Filter{{Key: "k", Equals: "1"}},
			})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decodeData[domain.QueryResponse](t, envelope)
		assert.Empty(t, result.Hits)
	})

	t.Run("matching filter restricts hits", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points/query",
			domain.QueryRequest{
				Vector:       []float32{0.8, 0.2, 0, 0},
				TopK:         10,
				WithPayloads: true,
				Filters:      []domain.Filter{{Key: "i", Equals: "2"}},
			})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decodeData[domain.QueryResponse](t, envelope)
		require.Len(t, result.Hits, 1)
		assert.Equal(t, "p2", result.Hits[0].ID)
	})

	t.Run("bad top_k", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points/query",
			domain.QueryRequest{Vector: []float32{1, 0, 0, 0}, TopK: 0})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_argument", envelope.Code)
	})

	t.Run("unknown collection", func(t *testing.T) {
		resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/nope/points/query",
			domain.QueryRequest{Vector: []float32{1, 0, 0, 0}, TopK: 1})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", envelope.Code)
	})
}

func TestDeletePointsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	createDemo(t, srv)
	upsertDemoPoints(t, srv)

	resp, envelope := doJSON(t, srv, http.MethodPost, "/api/v1/collections/demo/points/delete",
		domain.DeletePointsRequest{IDs: []string{"p0", "missing"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeData[domain.DeletePointsResponse](t, envelope)
	assert.EqualValues(t, 1, result.Deleted)

	resp, envelope = doJSON(t, srv, http.MethodGet, "/api/v1/collections/demo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeData[domain.CollectionInfo](t, envelope)
	assert.Equal(t, 3, info.Points)
}

func TestPingAndHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, srv, http.MethodGet, "/api/v1/ping?message=hello", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ping := decodeData[domain.PingResponse](t, envelope)
	assert.Equal(t, "pong: hello", ping.Message)

	for _, path := range []string{"/health", "/api/v1/health"} {
		resp, envelope := doJSON(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, envelope.Success)
	}
}
