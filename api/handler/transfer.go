package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/api/transport"
	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/usecase"
	transferUC "github.com/fastygo/ledger/usecase/transfer"
)

// TransferHandler exposes funds transfers over HTTP.
type TransferHandler struct {
	baseHandler
	bus *usecase.Bus
}

func NewTransferHandler(bus *usecase.Bus, adapter *httpcontext.Adapter, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{
		baseHandler: newBaseHandler(adapter, logger),
		bus:         bus,
	}
}

// @Summary Transfer funds between accounts
// @Tags transfers
// @Router /api/v1/transfers [post]
func (h *TransferHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.TransferRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Dispatch(stdCtx, &transferUC.TransferFunds{
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		FromAsset:   req.FromAsset,
		ToAsset:     req.ToAsset,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, result)
}

// @Summary Get transfer
// @Tags transfers
// @Router /api/v1/transfers/{id} [get]
func (h *TransferHandler) Get(ctx *fasthttp.RequestCtx) {
	transferID, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Ask(stdCtx, &transferUC.GetTransfer{TransferID: transferID})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}
