package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/internal/metrics"
	"github.com/fastygo/ledger/repository"
)

// Command requests a state change; Query requests a read. Both are plain data
// carriers resolved to exactly one handler by concrete name.
type Command interface {
	CommandName() string
}

type Query interface {
	QueryName() string
}

// CommandHandler executes one command against the given event log. The store
// parameter lets transactional dispatch substitute a staged log.
type CommandHandler func(ctx context.Context, store repository.EventStore, cmd Command) (any, error)

// QueryHandler serves one read-only query.
type QueryHandler func(ctx context.Context, q Query) (any, error)

// Scheduler hands jobs to the durable queue for out-of-band execution.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, payload []byte, delay time.Duration) error
}

// JobKindCommand marks queue jobs produced by DispatchAsync.
const JobKindCommand = "command"

// ErrHandlerNotFound is returned when no handler is registered for a
// command's or query's concrete name.
var ErrHandlerNotFound = domain.NewError(domain.ErrCodeNotFound, "no handler registered")

type commandRegistration struct {
	newCmd  func() Command
	handler CommandHandler
}

// Bus routes commands and queries to registered handlers. It supports
// synchronous, deferred (queued) and multi-command transactional dispatch,
// and TTL-cached query reads.
type Bus struct {
	store     repository.EventStore
	cache     repository.QueryCache
	scheduler Scheduler
	logger    *zap.Logger
	stats     *metrics.Set

	mu          sync.RWMutex
	cmdHandlers map[string]commandRegistration
	qryHandlers map[string]QueryHandler
}

// NewBus wires the dispatch layer. Cache and scheduler may be nil; AskCached
// then degrades to Ask and DispatchAsync fails.
func NewBus(store repository.EventStore, cache repository.QueryCache, scheduler Scheduler, logger *zap.Logger, stats *metrics.Set) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		store:       store,
		cache:       cache,
		scheduler:   scheduler,
		logger:      logger,
		stats:       stats,
		cmdHandlers: make(map[string]commandRegistration),
		qryHandlers: make(map[string]QueryHandler),
	}
}

// Register binds a handler to the command name produced by newCmd.
// Re-registration overwrites silently: the last registered handler wins.
func (b *Bus) Register(newCmd func() Command, handler CommandHandler) {
	name := newCmd().CommandName()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmdHandlers[name] = commandRegistration{newCmd: newCmd, handler: handler}
}

// RegisterQuery binds a handler to a query name. Last registered wins.
func (b *Bus) RegisterQuery(name string, handler QueryHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qryHandlers[name] = handler
}

// Dispatch resolves the command's handler synchronously and returns its
// result.
func (b *Bus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	return b.dispatch(ctx, b.store, cmd)
}

func (b *Bus) dispatch(ctx context.Context, store repository.EventStore, cmd Command) (any, error) {
	name := cmd.CommandName()
	b.mu.RLock()
	reg, ok := b.cmdHandlers[name]
	b.mu.RUnlock()
	if !ok {
		b.stats.CommandResult(name, "unroutable")
		return nil, domain.WrapError(domain.ErrCodeNotFound, "no handler for command "+name, ErrHandlerNotFound)
	}

	result, err := reg.handler(ctx, store, cmd)
	if err != nil {
		b.stats.CommandResult(name, "error")
		return nil, err
	}
	b.stats.CommandResult(name, "ok")
	return result, nil
}

type asyncEnvelope struct {
	Name string          `json:"name"`
	Body json.RawMessage `json:"body"`
}

// DispatchAsync enqueues the command for out-of-band execution after the
// given delay. Zero delay means "as soon as a worker picks it up", not
// in-process. The caller receives no result.
func (b *Bus) DispatchAsync(ctx context.Context, cmd Command, delay time.Duration) error {
	if b.scheduler == nil {
		return domain.NewError(domain.ErrCodeInternal, "no scheduler configured for async dispatch")
	}
	if delay < 0 {
		return domain.NewError(domain.ErrCodeInvalid, "dispatch delay must not be negative")
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "command not serializable", err)
	}
	payload, err := json.Marshal(asyncEnvelope{Name: cmd.CommandName(), Body: body})
	if err != nil {
		return err
	}
	return b.scheduler.Schedule(ctx, JobKindCommand, payload, delay)
}

// DispatchEncoded decodes a queued command envelope and dispatches it. Called
// by the queue worker.
func (b *Bus) DispatchEncoded(ctx context.Context, payload []byte) (any, error) {
	var env asyncEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "queued command not decodable", err)
	}

	b.mu.RLock()
	reg, ok := b.cmdHandlers[env.Name]
	b.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrCodeNotFound, "no handler for command "+env.Name, ErrHandlerNotFound)
	}

	cmd := reg.newCmd()
	if err := json.Unmarshal(env.Body, cmd); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "queued command body not decodable", err)
	}
	return b.dispatch(ctx, b.store, cmd)
}

// DispatchTransaction runs all commands sequentially against a staged event
// log and commits every append in one atomic multi-stream batch. If any
// command fails, nothing is persisted.
func (b *Bus) DispatchTransaction(ctx context.Context, cmds []Command) ([]any, error) {
	staged := newStagedStore(b.store)

	results := make([]any, 0, len(cmds))
	for _, cmd := range cmds {
		result, err := b.dispatch(ctx, staged, cmd)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	appended, err := staged.Commit(ctx)
	if err != nil {
		return nil, err
	}
	b.stats.EventsAppended(appended)
	return results, nil
}

// Ask resolves the query's handler synchronously and returns its result.
func (b *Bus) Ask(ctx context.Context, q Query) (any, error) {
	name := q.QueryName()
	b.mu.RLock()
	handler, ok := b.qryHandlers[name]
	b.mu.RUnlock()
	if !ok {
		b.stats.QueryResult(name, "unroutable")
		return nil, domain.WrapError(domain.ErrCodeNotFound, "no handler for query "+name, ErrHandlerNotFound)
	}

	result, err := handler(ctx, q)
	if err != nil {
		b.stats.QueryResult(name, "error")
		return nil, err
	}
	b.stats.QueryResult(name, "handler")
	return result, nil
}

// AskCached serves the query from the TTL cache when an identical query was
// answered within ttl; cache hits come back as json.RawMessage. Cache errors
// degrade to a direct Ask.
func (b *Bus) AskCached(ctx context.Context, q Query, ttl time.Duration) (any, error) {
	if b.cache == nil || ttl <= 0 {
		return b.Ask(ctx, q)
	}

	key, err := CacheKey(q)
	if err != nil {
		return b.Ask(ctx, q)
	}

	if cached, found, err := b.cache.Get(ctx, key); err == nil && found {
		b.stats.QueryResult(q.QueryName(), "cache")
		return json.RawMessage(cached), nil
	} else if err != nil {
		b.logger.Warn("query cache read failed", zap.String("query", q.QueryName()), zap.Error(err))
	}

	result, err := b.Ask(ctx, q)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := b.cache.Set(ctx, key, body, ttl); err != nil {
		b.logger.Warn("query cache write failed", zap.String("query", q.QueryName()), zap.Error(err))
	}
	return result, nil
}

// CacheKey derives a deterministic key from the query's name and field
// values.
func CacheKey(q Query) (string, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum512(append([]byte(q.QueryName()+"|"), body...))
	return hex.EncodeToString(sum[:]), nil
}
