package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/api/transport"
	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/usecase"
	ledgerUC "github.com/fastygo/ledger/usecase/ledger"
)

// AccountHandler exposes the account ledger over HTTP. Commands go through
// the bus synchronously unless the request opts into async dispatch.
type AccountHandler struct {
	baseHandler
	bus      *usecase.Bus
	cacheTTL time.Duration
}

func NewAccountHandler(bus *usecase.Bus, adapter *httpcontext.Adapter, logger *zap.Logger, cacheTTL time.Duration) *AccountHandler {
	return &AccountHandler{
		baseHandler: newBaseHandler(adapter, logger),
		bus:         bus,
		cacheTTL:    cacheTTL,
	}
}

// @Summary Open account
// @Tags accounts
// @Router /api/v1/accounts [post]
func (h *AccountHandler) Open(ctx *fasthttp.RequestCtx) {
	var req transport.OpenAccountRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Dispatch(stdCtx, &ledgerUC.OpenAccount{
		AccountID:      req.AccountID,
		Name:           req.Name,
		OwnerID:        req.OwnerID,
		AllowOverdraft: req.AllowOverdraft,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, result)
}

// @Summary Credit account
// @Tags accounts
// @Router /api/v1/accounts/{id}/credit [post]
func (h *AccountHandler) Credit(ctx *fasthttp.RequestCtx) {
	h.movement(ctx, false)
}

// @Summary Debit account
// @Tags accounts
// @Router /api/v1/accounts/{id}/debit [post]
func (h *AccountHandler) Debit(ctx *fasthttp.RequestCtx) {
	h.movement(ctx, true)
}

func (h *AccountHandler) movement(ctx *fasthttp.RequestCtx, debit bool) {
	accountID, ok := ctx.UserValue("id").(string)
	if !ok || accountID == "" {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}
	var req transport.MovementRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	var cmd usecase.Command
	if debit {
		cmd = &ledgerUC.DebitAccount{
			AccountID: accountID,
			AssetCode: req.AssetCode,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Reason:    req.Reason,
		}
	} else {
		cmd = &ledgerUC.CreditAccount{
			AccountID: accountID,
			AssetCode: req.AssetCode,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Reason:    req.Reason,
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if req.Async {
		if err := h.bus.DispatchAsync(stdCtx, cmd, 0); err != nil {
			h.respondError(ctx, err)
			return
		}
		h.respondSuccess(ctx, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	result, err := h.bus.Dispatch(stdCtx, cmd)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Get account
// @Tags accounts
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) Get(ctx *fasthttp.RequestCtx) {
	accountID, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Ask(stdCtx, &ledgerUC.GetAccount{AccountID: accountID})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Get balance
// @Tags accounts
// @Router /api/v1/accounts/{id}/balance [get]
func (h *AccountHandler) Balance(ctx *fasthttp.RequestCtx) {
	accountID, _ := ctx.UserValue("id").(string)
	assetCode := string(ctx.QueryArgs().Peek("asset"))
	if assetCode == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "asset query parameter required"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.AskCached(stdCtx, &ledgerUC.GetBalance{
		AccountID: accountID,
		AssetCode: assetCode,
	}, h.cacheTTL)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Audit account ledger
// @Tags accounts
// @Router /api/v1/accounts/{id}/audit [get]
func (h *AccountHandler) Audit(ctx *fasthttp.RequestCtx) {
	accountID, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Ask(stdCtx, &ledgerUC.AuditAccount{AccountID: accountID})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}

// @Summary Freeze account
// @Tags accounts
// @Router /api/v1/accounts/{id}/freeze [post]
func (h *AccountHandler) Freeze(ctx *fasthttp.RequestCtx) {
	h.lifecycleCommand(ctx, func(accountID, reason string) usecase.Command {
		return &ledgerUC.FreezeAccount{AccountID: accountID, Reason: reason}
	})
}

// @Summary Unfreeze account
// @Tags accounts
// @Router /api/v1/accounts/{id}/unfreeze [post]
func (h *AccountHandler) Unfreeze(ctx *fasthttp.RequestCtx) {
	h.lifecycleCommand(ctx, func(accountID, _ string) usecase.Command {
		return &ledgerUC.UnfreezeAccount{AccountID: accountID}
	})
}

// @Summary Close account
// @Tags accounts
// @Router /api/v1/accounts/{id}/close [post]
func (h *AccountHandler) Close(ctx *fasthttp.RequestCtx) {
	h.lifecycleCommand(ctx, func(accountID, reason string) usecase.Command {
		return &ledgerUC.CloseAccount{AccountID: accountID, Reason: reason}
	})
}

func (h *AccountHandler) lifecycleCommand(ctx *fasthttp.RequestCtx, build func(accountID, reason string) usecase.Command) {
	accountID, _ := ctx.UserValue("id").(string)

	var req transport.LifecycleRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.respondError(ctx, domain.ErrInvalidPayload)
			return
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Dispatch(stdCtx, build(accountID, req.Reason))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}
