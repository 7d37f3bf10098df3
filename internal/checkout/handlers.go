package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Handler wires the pricing service to HTTP.
type Handler struct {
	Svc      *Service
	Loader   Loader
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Routes mounts the checkout pricing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/checkouts/{id}/totals", h.Totals)
	r.Get("/v1/checkouts/{id}/lines/{lineID}/price", h.LinePrice)
	r.Post("/v1/checkouts/{id}/recalculate", h.Recalculate)
}

// Totals returns the checkout monetary snapshot, refreshing it first when
// the cached prices lapsed.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Loader == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	checkoutID, ok := h.checkoutID(w, r)
	if !ok {
		return
	}
	info, lines, err := h.Loader.Load(r.Context(), checkoutID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.Svc.Total(r.Context(), info, lines, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payable, err := h.Svc.TotalWithGiftCards(r.Context(), info, lines, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c := info.Checkout
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"checkoutId":      c.ID.String(),
			"currency":        c.Currency,
			"total":           taxedMoney(total),
			"payableTotal":    taxedMoney(payable),
			"subtotal":        taxedMoney(c.Subtotal.Quantize()),
			"shippingPrice":   taxedMoney(c.ShippingPrice.Quantize()),
			"shippingTaxRate": c.ShippingTaxRate.String(),
			"priceExpiration": c.PriceExpiration,
		},
	})
}

// LinePrice returns the priced view of a single checkout line.
func (h *Handler) LinePrice(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Loader == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	checkoutID, ok := h.checkoutID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid line id", nil)
		return
	}
	info, lines, err := h.Loader.Load(r.Context(), checkoutID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.Svc.LineTotal(r.Context(), info, lines, lineID, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unit, err := h.Svc.LineUnitPrice(r.Context(), info, lines, lineID, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rate, err := h.Svc.LineTaxRate(r.Context(), info, lines, lineID, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"checkoutId": checkoutID.String(),
			"lineId":     lineID.String(),
			"totalPrice": taxedMoney(total),
			"unitPrice":  taxedMoney(unit),
			"taxRate":    rate.String(),
		},
	})
}

type recalculateRequest struct {
	Force bool `json:"force"`
}

// Recalculate forces a recomputation regardless of snapshot freshness and
// returns the refreshed totals.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Loader == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing service not configured", nil)
		return
	}
	checkoutID, ok := h.checkoutID(w, r)
	if !ok {
		return
	}
	req := recalculateRequest{Force: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", err.Error())
			return
		}
	}
	info, lines, err := h.Loader.Load(r.Context(), checkoutID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info, _, err = h.Svc.FetchPricesIfExpired(r.Context(), info, lines, nil, req.Force)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c := info.Checkout
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"checkoutId":      c.ID.String(),
			"currency":        c.Currency,
			"total":           taxedMoney(c.Total.Quantize()),
			"subtotal":        taxedMoney(c.Subtotal.Quantize()),
			"shippingPrice":   taxedMoney(c.ShippingPrice.Quantize()),
			"priceExpiration": c.PriceExpiration,
		},
	})
}

func (h *Handler) checkoutID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid checkout id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "checkout line not found", nil)
	case errors.Is(err, tax.ErrUnknownStrategy):
		common.JSONError(w, http.StatusConflict, common.CodeTaxMisconfigured, "tax strategy is not configured correctly", nil)
	case errors.Is(err, ErrTaxDataLineMismatch):
		h.Logger.Error().Err(err).Msg("tax data mismatch")
		common.JSONError(w, http.StatusBadGateway, common.CodeTaxProvider, "tax provider returned inconsistent data", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "checkout not found", nil)
	default:
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("checkout pricing request failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "unable to price checkout", nil)
	}
}

func taxedMoney(t money.TaxedMoney) map[string]string {
	return map[string]string{
		"net":      t.Net.Amount.String(),
		"gross":    t.Gross.Amount.String(),
		"tax":      t.Tax().Amount.String(),
		"currency": t.Currency(),
	}
}
