package market

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler proxies market data from the provider under /data.
type Handler struct {
	provider Provider
}

// NewHandler builds the market data handler.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// PortfolioCoinData returns the detail document of the coin named by ?coin=.
func (h *Handler) PortfolioCoinData(c *fiber.Ctx) error {
	coinID := strings.TrimSpace(c.Query("coin"))
	if coinID == "" {
		return fiber.NewError(http.StatusBadRequest, "No coin specified")
	}
	data, err := h.provider.CoinData(c.UserContext(), coinID)
	if err != nil {
		return err
	}
	return respond(c, "Coin data retrieved successfully", data)
}

// AllCoins returns the provider's coin list.
func (h *Handler) AllCoins(c *fiber.Ctx) error {
	data, err := h.provider.CoinList(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, "Retrieved all coins successfully", data)
}

// MarketsPage returns one page of market data, ?page= defaulting to 1.
func (h *Handler) MarketsPage(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		return fiber.NewError(http.StatusBadRequest, "Invalid page")
	}
	data, err := h.provider.Markets(c.UserContext(), page)
	if err != nil {
		return err
	}
	return respond(c, "Retrieved market data successfully", data)
}

// AllMarkets returns every market page concatenated.
func (h *Handler) AllMarkets(c *fiber.Ctx) error {
	data, err := h.provider.AllMarkets(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, "Retrieved market data successfully", data)
}

// TotalMarketCap returns the total market cap per currency.
func (h *Handler) TotalMarketCap(c *fiber.Ctx) error {
	data, err := h.provider.TotalMarketCap(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, "Retrieved total market cap successfully", data)
}

// Search runs a provider search for ?searchTerm=.
func (h *Handler) Search(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("searchTerm"))
	if term == "" {
		return fiber.NewError(http.StatusBadRequest, "Search query param is missing")
	}
	data, err := h.provider.Search(c.UserContext(), term)
	if err != nil {
		return err
	}
	return respond(c, "Search completed successfully", data)
}

func respond(c *fiber.Ctx, msg string, data json.RawMessage) error {
	return c.JSON(fiber.Map{"success": true, "msg": msg, "data": data})
}
