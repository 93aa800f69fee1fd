package portfolio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tomasdev42/crypto-portfolio/internal/middleware"
)

// Handler exposes the /portfolio endpoints.
type Handler struct {
	svc *Service
}

// NewHandler builds the portfolio handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AllCoins lists the caller's holdings.
func (h *Handler) AllCoins(c *fiber.Ctx) error {
	holdings, err := h.svc.Holdings(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	msg := "Portfolio retrieved successfully"
	if len(holdings) == 0 {
		msg = "Portfolio is empty"
	}
	return c.JSON(fiber.Map{"success": true, "msg": msg, "data": holdings})
}

// PortfolioValues returns the caller's valuation history.
func (h *Handler) PortfolioValues(c *fiber.Ctx) error {
	snapshots, err := h.svc.Snapshots(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Portfolio values retrieved successfully", "data": snapshots})
}

// TotalValue values the caller's holdings at current prices.
func (h *Handler) TotalValue(c *fiber.Ctx) error {
	total, err := h.svc.ComputeTotalValue(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"msg":     "Portfolio value computed successfully",
		"data":    fiber.Map{"value": json.Number(total.String())},
	})
}

type addRequest struct {
	ID     string          `json:"id"`
	Amount json.RawMessage `json:"amount"`
}

// Add adds a holding. amount may be sent as a JSON string or number.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	holding, err := h.svc.AddCoin(c.UserContext(), middleware.UserID(c), req.ID, amountText(req.Amount))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Coin added to portfolio successfully", "coinData": holding})
}

type deleteRequest struct {
	CoinID string `json:"coinId"`
}

// Delete removes a holding.
func (h *Handler) Delete(c *fiber.Ctx) error {
	var req deleteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "Invalid request body")
		}
	}
	holdings, err := h.svc.DeleteCoin(c.UserContext(), middleware.UserID(c), req.CoinID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"msg":       fmt.Sprintf("Coin deletion completed - %s removed from portfolio", strings.TrimSpace(req.CoinID)),
		"portfolio": holdings,
	})
}

type editRequest struct {
	CoinID       string          `json:"coinId"`
	EditedAmount json.RawMessage `json:"editedAmount"`
}

// Edit replaces the amount of a holding.
func (h *Handler) Edit(c *fiber.Ctx) error {
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	holdings, err := h.svc.EditCoin(c.UserContext(), middleware.UserID(c), req.CoinID, amountText(req.EditedAmount))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "msg": "Coin amount updated successfully", "portfolio": holdings})
}

// amountText returns the textual form of a JSON string or number.
func amountText(raw json.RawMessage) string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}
