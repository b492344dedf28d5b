package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
)

// BalanceReader is the projected read model consulted by balance queries
// before falling back to a replay. TTL-consistent only.
type BalanceReader interface {
	Get(ctx context.Context, accountID, assetCode string) (int64, bool, error)
}

// Service implements the account and transaction ledger operations. Commands
// load aggregates by replay, apply one domain operation and persist; queries
// read from the projected view or replay on miss.
type Service struct {
	store         repository.EventStore
	snapshots     repository.SnapshotStore
	balances      BalanceReader
	logger        *zap.Logger
	snapshotEvery int64
}

// NewService wires the ledger use case. Snapshots and balances may be nil.
func NewService(store repository.EventStore, snapshots repository.SnapshotStore, balances BalanceReader, logger *zap.Logger, snapshotEvery int64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		snapshots:     snapshots,
		balances:      balances,
		logger:        logger,
		snapshotEvery: snapshotEvery,
	}
}

// RegisterHandlers binds every ledger command and query to the bus.
func (s *Service) RegisterHandlers(bus *usecase.Bus) {
	bus.Register(func() usecase.Command { return &OpenAccount{} }, s.handleOpenAccount)
	bus.Register(func() usecase.Command { return &CreditAccount{} }, s.handleCreditAccount)
	bus.Register(func() usecase.Command { return &DebitAccount{} }, s.handleDebitAccount)
	bus.Register(func() usecase.Command { return &FreezeAccount{} }, s.handleFreezeAccount)
	bus.Register(func() usecase.Command { return &UnfreezeAccount{} }, s.handleUnfreezeAccount)
	bus.Register(func() usecase.Command { return &CloseAccount{} }, s.handleCloseAccount)

	bus.RegisterQuery(QueryGetAccount, s.handleGetAccount)
	bus.RegisterQuery(QueryGetBalance, s.handleGetBalance)
	bus.RegisterQuery(QueryAuditAccount, s.handleAuditAccount)
}

func (s *Service) handleOpenAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*OpenAccount)

	var id domain.AccountUuid
	if req.AccountID == "" {
		id = domain.NewAccountUuid()
	} else {
		parsed, err := domain.ParseAccountUuid(req.AccountID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	account := domain.NewAccount(id)
	if err := domain.Retrieve(ctx, store, account); err != nil {
		return nil, err
	}
	if err := account.Open(req.Name, req.OwnerID, req.AllowOverdraft); err != nil {
		return nil, err
	}
	if err := account.Persist(ctx, store); err != nil {
		return nil, err
	}

	ledger := domain.NewTransaction(id)
	if err := domain.Retrieve(ctx, store, ledger); err != nil {
		return nil, err
	}
	if err := ledger.OpenLedger(req.AllowOverdraft); err != nil {
		return nil, err
	}
	if err := ledger.Persist(ctx, store); err != nil {
		return nil, err
	}

	s.logger.Info("account opened",
		zap.String("account_id", id.String()),
		zap.Bool("allow_overdraft", req.AllowOverdraft))
	return AccountResult{AccountID: id.String()}, nil
}

func (s *Service) handleCreditAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*CreditAccount)
	return s.move(ctx, store, req.AccountID, req.AssetCode, req.Amount, req.Currency, req.Reason, false)
}

func (s *Service) handleDebitAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*DebitAccount)
	return s.move(ctx, store, req.AccountID, req.AssetCode, req.Amount, req.Currency, req.Reason, true)
}

func (s *Service) move(ctx context.Context, store repository.EventStore, accountID, assetCode string, amount int64, currency, reason string, debit bool) (any, error) {
	id, err := domain.ParseAccountUuid(accountID)
	if err != nil {
		return nil, err
	}
	asset, err := domain.NewAssetAmount(assetCode, amount)
	if err != nil {
		return nil, err
	}

	account := domain.NewAccount(id)
	if err := domain.RetrieveExisting(ctx, store, account); err != nil {
		return nil, err
	}
	if !account.CanTransact() {
		return nil, domain.InvalidStateTransition("account", id.String(), string(account.Status), "transact")
	}

	ledger := domain.NewTransaction(id)
	if err := domain.RetrieveWithSnapshot(ctx, store, s.snapshots, ledger); err != nil {
		return nil, err
	}

	if debit {
		err = ledger.Debit(asset, currency, reason)
	} else {
		err = ledger.Credit(asset, currency, reason)
	}
	if err != nil {
		return nil, err
	}
	if err := ledger.Persist(ctx, store); err != nil {
		return nil, err
	}

	s.maybeSnapshot(ctx, store, ledger)

	return MovementResult{
		AccountID: id.String(),
		AssetCode: asset.AssetCode,
		Balance:   ledger.Balance(asset.AssetCode),
		Hash:      ledger.HeadHash().String(),
		Sequence:  ledger.Version(),
	}, nil
}

// maybeSnapshot caches the fold every snapshotEvery events. Skipped during
// transactional dispatch: a snapshot must never get ahead of the committed
// log.
func (s *Service) maybeSnapshot(ctx context.Context, store repository.EventStore, ledger *domain.Transaction) {
	if s.snapshots == nil || s.snapshotEvery <= 0 || store != s.store {
		return
	}
	if ledger.Version()%s.snapshotEvery != 0 {
		return
	}
	if err := domain.TakeSnapshot(ctx, s.snapshots, ledger); err != nil {
		s.logger.Warn("snapshot failed",
			zap.String("stream", ledger.StreamID()),
			zap.Error(err))
	}
}

func (s *Service) handleFreezeAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*FreezeAccount)
	return s.lifecycle(ctx, store, req.AccountID, func(a *domain.Account) error {
		return a.Freeze(req.Reason)
	})
}

func (s *Service) handleUnfreezeAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*UnfreezeAccount)
	return s.lifecycle(ctx, store, req.AccountID, func(a *domain.Account) error {
		return a.Unfreeze()
	})
}

func (s *Service) handleCloseAccount(ctx context.Context, store repository.EventStore, cmd usecase.Command) (any, error) {
	req := cmd.(*CloseAccount)
	return s.lifecycle(ctx, store, req.AccountID, func(a *domain.Account) error {
		return a.Close(req.Reason)
	})
}

func (s *Service) lifecycle(ctx context.Context, store repository.EventStore, accountID string, op func(*domain.Account) error) (any, error) {
	id, err := domain.ParseAccountUuid(accountID)
	if err != nil {
		return nil, err
	}
	account := domain.NewAccount(id)
	if err := domain.RetrieveExisting(ctx, store, account); err != nil {
		return nil, err
	}
	if err := op(account); err != nil {
		return nil, err
	}
	if err := account.Persist(ctx, store); err != nil {
		return nil, err
	}
	return AccountResult{AccountID: id.String()}, nil
}

func (s *Service) handleGetAccount(ctx context.Context, q usecase.Query) (any, error) {
	req := q.(*GetAccount)
	id, err := domain.ParseAccountUuid(req.AccountID)
	if err != nil {
		return nil, err
	}
	account := domain.NewAccount(id)
	if err := domain.RetrieveExisting(ctx, s.store, account); err != nil {
		return nil, err
	}
	return AccountView{
		AccountID:      id.String(),
		Name:           account.Name,
		OwnerID:        account.OwnerID,
		Status:         string(account.Status),
		AllowOverdraft: account.AllowOverdraft,
		Version:        account.Version(),
	}, nil
}

func (s *Service) handleGetBalance(ctx context.Context, q usecase.Query) (any, error) {
	req := q.(*GetBalance)
	id, err := domain.ParseAccountUuid(req.AccountID)
	if err != nil {
		return nil, err
	}

	if s.balances != nil {
		balance, found, err := s.balances.Get(ctx, id.String(), req.AssetCode)
		if err != nil {
			s.logger.Warn("balance view read failed", zap.Error(err))
		} else if found {
			return BalanceResult{
				AccountID: id.String(),
				AssetCode: req.AssetCode,
				Balance:   balance,
				Source:    "projection",
			}, nil
		}
	}

	ledger := domain.NewTransaction(id)
	if err := domain.RetrieveWithSnapshot(ctx, s.store, s.snapshots, ledger); err != nil {
		return nil, err
	}
	if ledger.IsNew() {
		return nil, domain.ErrAggregateNotFound
	}
	return BalanceResult{
		AccountID: id.String(),
		AssetCode: req.AssetCode,
		Balance:   ledger.Balance(req.AssetCode),
		Source:    "replay",
	}, nil
}

// handleAuditAccount replays the transaction stream verifying every chain
// link. One tampered event invalidates itself and every later link.
func (s *Service) handleAuditAccount(ctx context.Context, q usecase.Query) (any, error) {
	req := q.(*AuditAccount)
	id, err := domain.ParseAccountUuid(req.AccountID)
	if err != nil {
		return nil, err
	}

	ledger := domain.NewTransaction(id)
	events, err := s.store.Load(ctx, ledger.StreamID(), 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrAggregateNotFound
	}

	report := AuditReport{AccountID: id.String(), ChainIntact: true}
	for _, evt := range events {
		entry := AuditEntry{
			Sequence: evt.Sequence,
			Type:     evt.Type,
			Hash:     evt.Hash,
			Valid:    true,
		}
		if err := ledger.Apply(evt); err != nil {
			entry.Valid = false
			entry.Error = err.Error()
			report.ChainIntact = false
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}
