package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/usecase"
	transferUC "github.com/fastygo/ledger/usecase/transfer"
)

// WorkflowHandler exposes saga instances for monitoring.
type WorkflowHandler struct {
	baseHandler
	bus *usecase.Bus
}

func NewWorkflowHandler(bus *usecase.Bus, adapter *httpcontext.Adapter, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		baseHandler: newBaseHandler(adapter, logger),
		bus:         bus,
	}
}

// @Summary Get workflow instance
// @Tags workflows
// @Router /api/v1/workflows/{id} [get]
func (h *WorkflowHandler) Get(ctx *fasthttp.RequestCtx) {
	workflowID, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.bus.Ask(stdCtx, &transferUC.GetWorkflow{WorkflowID: workflowID})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, result)
}
