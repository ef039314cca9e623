package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/investor-resolver/internal/config"
	"github.com/sells-group/investor-resolver/internal/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *appEnv) {
	t.Helper()
	t.Chdir(t.TempDir())

	c, err := config.Load()
	require.NoError(t, err)
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "serve.db")

	ctx := context.Background()
	env, err := initEnv(ctx, c, "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	write := func(collection string, docs ...model.Document) {
		outcomes, err := env.Store.WriteBatch(ctx, collection, docs)
		require.NoError(t, err)
		for _, o := range outcomes {
			require.True(t, o.OK())
		}
	}
	write("clients",
		model.Document{ID: "c-1", Fields: map[string]any{"fullName": "Jan Kowalski", "excelId": "101"}},
	)
	write("investments",
		model.Document{ID: "inv-1", Fields: map[string]any{
			"clientId": "c-1", "productName": "Obligacje Alfa", "productType": "bonds", "investmentAmount": "1 500,50",
		}},
		model.Document{ID: "inv-2", Fields: map[string]any{
			"ID_Klient": "101", "Produkt_nazwa": "OBLIGACJE ALFA", "investmentAmount": "500",
		}},
	)

	srv := httptest.NewServer(newRouter(env.Service, env.Fetcher))
	t.Cleanup(srv.Close)
	return srv, env
}

func getJSON(t *testing.T, u string, out any) int {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestServe_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	status := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestServe_Products(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Products []struct {
			DisplayName string `json:"displayName"`
			Investments int    `json:"investments"`
		} `json:"products"`
		Statistics struct {
			TotalRecords          int    `json:"totalRecords"`
			TotalInvestmentAmount string `json:"totalInvestmentAmount"`
		} `json:"statistics"`
	}
	status := getJSON(t, srv.URL+"/products?max=10", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "Obligacje Alfa", body.Products[0].DisplayName)
	assert.Equal(t, 2, body.Products[0].Investments)
	assert.Equal(t, 2, body.Statistics.TotalRecords)
	assert.Equal(t, "2000.5", body.Statistics.TotalInvestmentAmount)
}

func TestServe_ProductsBadMax(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, srv.URL+"/products?max=abc", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "max")
}

func TestServe_ProductInvestors(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		StrategyUsed string `json:"strategyUsed"`
		Investors    []struct {
			Client struct {
				ID string `json:"id"`
			} `json:"client"`
			InvestmentCount int `json:"investmentCount"`
		} `json:"investors"`
		MappingStats model.MappingStats `json:"mappingStats"`
	}
	status := getJSON(t, srv.URL+"/products/"+url.PathEscape("obligacje alfa")+"/investors", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "normalized_name", body.StrategyUsed)
	require.Len(t, body.Investors, 1)
	assert.Equal(t, "c-1", body.Investors[0].Client.ID)
	assert.Equal(t, 2, body.Investors[0].InvestmentCount)
	assert.Equal(t, 2, body.MappingStats.Mapped)
}

func TestServe_UnknownProductIsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		StrategyUsed string            `json:"strategyUsed"`
		Investors    []json.RawMessage `json:"investors"`
	}
	status := getJSON(t, srv.URL+"/products/nope/investors", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "none", body.StrategyUsed)
	assert.Empty(t, body.Investors)
}

func TestServe_Clients(t *testing.T) {
	srv, _ := newTestServer(t)

	var body struct {
		Clients  []model.ClientRecord `json:"clients"`
		NotFound []string             `json:"notFound"`
	}
	status := getJSON(t, srv.URL+"/clients?id=c-1,missing&id=101", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Clients, 2)
	assert.Equal(t, "c-1", body.Clients[0].ID)
	assert.Equal(t, "c-1", body.Clients[1].ID)
	assert.Equal(t, []string{"missing"}, body.NotFound)
}

func TestServe_ClientsWithoutIDs(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	status := getJSON(t, srv.URL+"/clients", &body)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServe_StoreDown(t *testing.T) {
	srv, env := newTestServer(t)
	require.NoError(t, env.Store.Close())

	var body map[string]string
	status := getJSON(t, srv.URL+"/products?refresh=true", &body)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "document store unavailable", body["error"])
}
