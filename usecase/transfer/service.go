package transfer

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
	"github.com/fastygo/ledger/usecase/workflow"
)

// WorkflowTransfer is the saga definition name for funds transfers.
const WorkflowTransfer = "transfer-funds"

// Shared value keys used across saga steps and compensations.
const (
	keyTransferID      = "transfer_id"
	keyFromAccount     = "from_account"
	keyToAccount       = "to_account"
	keyFromAsset       = "from_asset"
	keyToAsset         = "to_asset"
	keyAmount          = "amount"
	keyConvertedAmount = "converted_amount"
	keyCurrency        = "currency"
)

const conflictRetries = 3

// Service runs funds transfers as a three-step saga: debit the source,
// credit the destination, mark the transfer completed. Each step persists to
// the event store before the next runs; on failure the executed steps are
// compensated in reverse.
type Service struct {
	store     repository.EventStore
	snapshots repository.SnapshotStore
	rates     repository.RateProvider
	engine    *workflow.Engine
	workflows repository.WorkflowStore
	logger    *zap.Logger
}

// NewService wires the transfer use case and registers its saga definition
// on the engine.
func NewService(store repository.EventStore, snapshots repository.SnapshotStore, rates repository.RateProvider, engine *workflow.Engine, workflows repository.WorkflowStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		snapshots: snapshots,
		rates:     rates,
		engine:    engine,
		workflows: workflows,
		logger:    logger,
	}
	engine.Register(s.definition())
	return s
}

// RegisterHandlers binds transfer commands and queries to the bus.
func (s *Service) RegisterHandlers(bus *usecase.Bus) {
	bus.Register(func() usecase.Command { return &TransferFunds{} }, s.handleTransferFunds)
	bus.RegisterQuery(QueryGetTransfer, s.handleGetTransfer)
	bus.RegisterQuery(QueryGetWorkflow, s.handleGetWorkflow)
}

func (s *Service) handleTransferFunds(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*TransferFunds)

	// The saga commits each step to the real log as it runs; a staged
	// dispatch cannot contain those effects, so refuse to start one.
	if store != s.store {
		return nil, domain.NewError(domain.ErrCodeInvalid, "transfers cannot run inside a transactional dispatch")
	}

	fromID, err := domain.ParseAccountUuid(req.FromAccount)
	if err != nil {
		return nil, err
	}
	toID, err := domain.ParseAccountUuid(req.ToAccount)
	if err != nil {
		return nil, err
	}
	if _, err := domain.NewAssetAmount(req.FromAsset, req.Amount); err != nil {
		return nil, err
	}
	toAsset := req.ToAsset
	if toAsset == "" {
		toAsset = req.FromAsset
	}

	for _, id := range []domain.AccountUuid{fromID, toID} {
		account := domain.NewAccount(id)
		if err := domain.RetrieveExisting(ctx, store, account); err != nil {
			return nil, err
		}
		if !account.CanTransact() {
			return nil, domain.InvalidStateTransition("account", id.String(), string(account.Status), "transact")
		}
	}

	rate, converted, err := s.quote(ctx, req.FromAsset, toAsset, req.Amount)
	if err != nil {
		return nil, err
	}

	transferID := domain.NewAccountUuid().String()
	workflowID := ""

	values := map[string]string{
		keyTransferID:      transferID,
		keyFromAccount:     fromID.String(),
		keyToAccount:       toID.String(),
		keyFromAsset:       req.FromAsset,
		keyToAsset:         toAsset,
		keyCurrency:        req.Currency,
		keyAmount:          strconv.FormatInt(req.Amount, 10),
		keyConvertedAmount: strconv.FormatInt(converted, 10),
	}

	transfer := domain.NewTransfer(transferID)
	if err := domain.Retrieve(ctx, store, transfer); err != nil {
		return nil, err
	}
	if err := transfer.Initiate(domain.TransferInitiatedPayload{
		FromAccount: fromID.String(),
		ToAccount:   toID.String(),
		FromAsset:   req.FromAsset,
		ToAsset:     toAsset,
		Amount:      req.Amount,
		Rate:        rate.String(),
		Reference:   req.Reference,
	}); err != nil {
		return nil, err
	}
	if err := transfer.Persist(ctx, store); err != nil {
		return nil, err
	}

	instance, runErr := s.engine.Start(ctx, WorkflowTransfer, values)
	if instance != nil {
		workflowID = instance.ID
	}
	if runErr != nil {
		s.markFailed(ctx, transferID, runErr.Error())
		s.logger.Warn("transfer failed",
			zap.String("transfer_id", transferID),
			zap.String("workflow_id", workflowID),
			zap.Error(runErr))
		return nil, runErr
	}

	s.logger.Info("transfer completed",
		zap.String("transfer_id", transferID),
		zap.String("workflow_id", workflowID),
		zap.String("from_account", fromID.String()),
		zap.String("to_account", toID.String()),
		zap.Int64("amount", req.Amount))

	return TransferResult{
		TransferID: transferID,
		WorkflowID: workflowID,
		Status:     string(domain.TransferCompleted),
		Rate:       rate.String(),
	}, nil
}

// quote returns the agreed rate and the destination amount in minor units.
// Same-asset transfers always move at rate 1.
func (s *Service) quote(ctx context.Context, fromAsset, toAsset string, amount int64) (decimal.Decimal, int64, error) {
	if fromAsset == toAsset {
		return decimal.NewFromInt(1), amount, nil
	}
	if s.rates == nil {
		return decimal.Decimal{}, 0, domain.NewError(domain.ErrCodeInvalid, "cross-asset transfers require a rate provider")
	}
	rate, err := s.rates.GetRate(ctx, fromAsset, toAsset)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}
	if rate.Sign() <= 0 {
		return decimal.Decimal{}, 0, domain.NewError(domain.ErrCodeInvalid, "rate for "+fromAsset+"/"+toAsset+" must be positive")
	}
	converted := rate.Mul(decimal.NewFromInt(amount)).Round(0).IntPart()
	if converted <= 0 {
		return decimal.Decimal{}, 0, domain.NewError(domain.ErrCodeInvalid, "converted amount rounds to zero")
	}
	return rate, converted, nil
}

func (s *Service) definition() workflow.Definition {
	return workflow.Definition{
		Name: WorkflowTransfer,
		Steps: []workflow.Activity{
			{
				Name: "debit-source",
				Execute: func(ctx context.Context, run *workflow.Run) error {
					return s.move(ctx, run.Get(keyFromAccount), run.Get(keyFromAsset), run, keyAmount, "transfer "+run.Get(keyTransferID), true)
				},
				Compensate: func(ctx context.Context, run *workflow.Run) error {
					return s.move(ctx, run.Get(keyFromAccount), run.Get(keyFromAsset), run, keyAmount, "reversal of transfer "+run.Get(keyTransferID), false)
				},
			},
			{
				Name: "credit-destination",
				Execute: func(ctx context.Context, run *workflow.Run) error {
					return s.move(ctx, run.Get(keyToAccount), run.Get(keyToAsset), run, keyConvertedAmount, "transfer "+run.Get(keyTransferID), false)
				},
				Compensate: func(ctx context.Context, run *workflow.Run) error {
					return s.move(ctx, run.Get(keyToAccount), run.Get(keyToAsset), run, keyConvertedAmount, "reversal of transfer "+run.Get(keyTransferID), true)
				},
			},
			{
				Name: "complete-transfer",
				Execute: func(ctx context.Context, run *workflow.Run) error {
					return s.completeTransfer(ctx, run.Get(keyTransferID))
				},
			},
		},
	}
}

// move debits or credits one account ledger, retrying lost concurrency races
// with a fresh replay each attempt.
func (s *Service) move(ctx context.Context, accountID, assetCode string, run *workflow.Run, amountKey, reason string, debit bool) error {
	id, err := domain.ParseAccountUuid(accountID)
	if err != nil {
		return err
	}
	amount, err := run.GetInt64(amountKey)
	if err != nil {
		return err
	}
	asset, err := domain.NewAssetAmount(assetCode, amount)
	if err != nil {
		return err
	}
	currency := run.Get(keyCurrency)

	account := domain.NewAccount(id)
	if err := domain.RetrieveExisting(ctx, s.store, account); err != nil {
		return err
	}
	if !account.CanTransact() {
		return domain.InvalidStateTransition("account", id.String(), string(account.Status), "transact")
	}

	return usecase.RetryOnConflict(ctx, conflictRetries, func() error {
		ledger := domain.NewTransaction(id)
		if err := domain.RetrieveWithSnapshot(ctx, s.store, s.snapshots, ledger); err != nil {
			return err
		}
		if ledger.IsNew() {
			return domain.ErrAggregateNotFound
		}
		if debit {
			if err := ledger.Debit(asset, currency, reason); err != nil {
				return err
			}
		} else {
			if err := ledger.Credit(asset, currency, reason); err != nil {
				return err
			}
		}
		return ledger.Persist(ctx, s.store)
	})
}

// completeTransfer is idempotent: a retried step that finds the transfer
// already completed has nothing left to do.
func (s *Service) completeTransfer(ctx context.Context, transferID string) error {
	return usecase.RetryOnConflict(ctx, conflictRetries, func() error {
		transfer := domain.NewTransfer(transferID)
		if err := domain.RetrieveExisting(ctx, s.store, transfer); err != nil {
			return err
		}
		if transfer.Status == domain.TransferCompleted {
			return nil
		}
		if err := transfer.Complete(); err != nil {
			return err
		}
		return transfer.Persist(ctx, s.store)
	})
}

// markFailed records the terminal failure on the transfer aggregate after
// compensation. Best effort: the workflow instance already carries the error.
func (s *Service) markFailed(ctx context.Context, transferID, reason string) {
	err := usecase.RetryOnConflict(ctx, conflictRetries, func() error {
		transfer := domain.NewTransfer(transferID)
		if err := domain.RetrieveExisting(ctx, s.store, transfer); err != nil {
			return err
		}
		if transfer.Status != domain.TransferInitiated {
			return nil
		}
		if err := transfer.Fail(reason); err != nil {
			return err
		}
		return transfer.Persist(ctx, s.store)
	})
	if err != nil {
		s.logger.Error("failed to record transfer failure",
			zap.String("transfer_id", transferID),
			zap.Error(err))
	}
}

func (s *Service) handleGetTransfer(ctx context.Context, q usecase.Query) (any, error) {
	req := q.(*GetTransfer)
	transfer := domain.NewTransfer(req.TransferID)
	if err := domain.RetrieveExisting(ctx, s.store, transfer); err != nil {
		return nil, err
	}
	return TransferView{
		TransferID:    req.TransferID,
		FromAccount:   transfer.FromAccount,
		ToAccount:     transfer.ToAccount,
		FromAsset:     transfer.FromAsset,
		ToAsset:       transfer.ToAsset,
		Amount:        transfer.Amount,
		Rate:          transfer.Rate,
		Status:        string(transfer.Status),
		FailureReason: transfer.FailureReason,
	}, nil
}

func (s *Service) handleGetWorkflow(ctx context.Context, q usecase.Query) (any, error) {
	req := q.(*GetWorkflow)
	return s.workflows.GetWorkflow(ctx, req.WorkflowID)
}
