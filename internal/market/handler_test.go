package market

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newDataApp(p Provider) *fiber.App {
	h := NewHandler(p)
	app := fiber.New()
	app.Get("/data/portfolio-coin-data", h.PortfolioCoinData)
	app.Get("/data/all-coins", h.AllCoins)
	app.Get("/data/all-coins-with-market-data", h.MarketsPage)
	app.Get("/data/all-coins-with-market-data-recursive", h.AllMarkets)
	app.Get("/data/total-market-cap", h.TotalMarketCap)
	app.Get("/data/search", h.Search)
	return app
}

func TestDataHandlers(t *testing.T) {
	app := newDataApp(newStub())

	cases := []struct {
		path   string
		status int
		data   string
	}{
		{"/data/portfolio-coin-data?coin=bitcoin", http.StatusOK, `{"id":"bitcoin"}`},
		{"/data/portfolio-coin-data", http.StatusBadRequest, ""},
		{"/data/all-coins", http.StatusOK, `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"}]`},
		{"/data/all-coins-with-market-data?page=2", http.StatusOK, `[{"id":"bitcoin"}]`},
		{"/data/all-coins-with-market-data?page=0", http.StatusBadRequest, ""},
		{"/data/all-coins-with-market-data-recursive", http.StatusOK, `[{"id":"bitcoin"},{"id":"ethereum"}]`},
		{"/data/total-market-cap", http.StatusOK, `{"usd":1}`},
		{"/data/search?searchTerm=eth", http.StatusOK, `{"coins":[{"id":"eth"}]}`},
		{"/data/search", http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.path, resp.StatusCode, tc.status)
		}
		if tc.data == "" {
			continue
		}
		raw, _ := io.ReadAll(resp.Body)
		var body struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("%s: decode: %v", tc.path, err)
		}
		if !body.Success || string(body.Data) != tc.data {
			t.Fatalf("%s: body %s", tc.path, raw)
		}
	}
}
