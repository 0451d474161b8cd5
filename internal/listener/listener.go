package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/compose-network/receiver-deployer/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	defaultPollInterval       = 4 * time.Second
	defaultMaxBlockRange      = 1000
	defaultResubscribeBackoff = 30 * time.Second
	subscriptionBuffer        = 16
)

// ErrUnknownEvent is returned when a requested event is not part of the contract ABI.
var ErrUnknownEvent = errors.New("event not declared in ABI")

type (
	// Event is a decoded contract log.
	Event struct {
		Name    string
		Address common.Address
		Fields  map[string]any
		Block   uint64
		TxHash  common.Hash
	}

	// Handler is invoked from the listener goroutines, one call at a time per event name.
	Handler func(Event)

	Options struct {
		// PollInterval is used when the endpoint cannot push logs (plain HTTP RPC).
		PollInterval time.Duration
		// MaxBlockRange caps the block span of a single eth_getLogs query while polling.
		MaxBlockRange uint64
		// ResubscribeBackoff is the longest wait between attempts to restore a dropped
		// subscription.
		ResubscribeBackoff time.Duration
	}

	blockNumberReader interface {
		BlockNumber(ctx context.Context) (uint64, error)
	}

	// Subscription owns the goroutines started by Attach. Close stops all of them.
	Subscription struct {
		address common.Address
		abi     abi.ABI
		events  []string
		handler Handler
		opts    Options
		polling bool
		pushed  int

		cancel    context.CancelFunc
		wg        sync.WaitGroup
		errs      chan error
		closeOnce sync.Once
		logger    *slog.Logger
	}
)

// Attach starts one listener per event on the contract at address. Dropped subscriptions are
// restored with backoff. Endpoints that do not support subscriptions are polled with
// eth_getLogs instead.
func Attach(ctx context.Context, filterer bind.ContractFilterer, address common.Address, contractABI abi.ABI, events []string, handler Handler, opts Options) (*Subscription, error) {
	for _, name := range events {
		if _, ok := contractABI.Events[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, name)
		}
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxBlockRange == 0 {
		opts.MaxBlockRange = defaultMaxBlockRange
	}
	if opts.ResubscribeBackoff <= 0 {
		opts.ResubscribeBackoff = defaultResubscribeBackoff
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		address: address,
		abi:     contractABI,
		events:  events,
		handler: handler,
		opts:    opts,
		cancel:  cancel,
		errs:    make(chan error, len(events)+1),
		logger:  logger.Named("event_listener").With("address", address.Hex()),
	}

	if err := s.subscribe(ctx, filterer); err != nil {
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) || s.pushed > 0 {
			s.Close()
			return nil, err
		}

		s.logger.With("interval", opts.PollInterval).Info("endpoint does not support subscriptions, polling for logs")
		if err := s.poll(ctx, filterer); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.logger.With("events", events).Info("event listeners set up")

	return s, nil
}

// Polling reports whether logs are polled rather than pushed.
func (s *Subscription) Polling() bool {
	return s.polling
}

// Err delivers errors that interrupted a listener, such as a dropped subscription or a
// failed poll. Listeners keep retrying after reporting. It is never closed.
func (s *Subscription) Err() <-chan error {
	return s.errs
}

// Close stops all listeners and waits for them to return. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Info("event listeners closed")
	})
}

// subscribe pushes each event through its own subscription. The first attempt is made
// here so that missing notification support is reported to Attach; later drops are
// restored with backoff for as long as the subscription is open.
func (s *Subscription) subscribe(ctx context.Context, filterer bind.ContractFilterer) error {
	for _, name := range s.events {
		query := ethereum.FilterQuery{
			Addresses: []common.Address{s.address},
			Topics:    [][]common.Hash{{s.abi.Events[name].ID}},
		}
		logs := make(chan types.Log, subscriptionBuffer)

		initial, err := filterer.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}

		sub := event.ResubscribeErr(s.opts.ResubscribeBackoff, func(subCtx context.Context, lastErr error) (event.Subscription, error) {
			if initial != nil {
				first := initial
				initial = nil
				return first, nil
			}
			if lastErr != nil && ctx.Err() == nil {
				s.report(fmt.Errorf("subscription to %s dropped, resubscribing: %w", name, lastErr))
			}

			next, err := filterer.SubscribeFilterLogs(subCtx, query, logs)
			if err != nil {
				if ctx.Err() == nil {
					s.report(fmt.Errorf("failed to resubscribe to %s: %w", name, err))
				}
				return nil, err
			}
			s.logger.With("event", name).Info("subscription restored")

			return next, nil
		})

		s.pushed++
		s.wg.Add(1)
		go func(name string) {
			defer s.wg.Done()
			defer sub.Unsubscribe()

			for {
				select {
				case log := <-logs:
					s.dispatch(name, log)
				case _, ok := <-sub.Err():
					if !ok {
						s.logger.With("event", name).Debug("subscription ended")
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(name)
	}

	return nil
}

func (s *Subscription) poll(ctx context.Context, filterer bind.ContractFilterer) error {
	heads, ok := filterer.(blockNumberReader)
	if !ok {
		return errors.New("endpoint supports neither log subscriptions nor block number queries")
	}

	head, err := heads.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}

	names := make(map[common.Hash]string, len(s.events))
	ids := make([]common.Hash, 0, len(s.events))
	for _, name := range s.events {
		id := s.abi.Events[name].ID
		names[id] = name
		ids = append(ids, id)
	}
	query := ethereum.FilterQuery{
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{ids},
	}

	s.polling = true
	next := head + 1

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			latest, err := heads.BlockNumber(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.report(fmt.Errorf("failed to get latest block: %w", err))
				continue
			}

			next = s.pollRange(ctx, filterer, query, names, next, latest)
		}
	}()

	return nil
}

// pollRange fetches logs for [from, latest] in chunks of at most MaxBlockRange blocks and
// returns the first block that still has to be fetched. A failed chunk is retried on the
// next tick.
func (s *Subscription) pollRange(ctx context.Context, filterer bind.ContractFilterer, query ethereum.FilterQuery, names map[common.Hash]string, from, latest uint64) uint64 {
	for from <= latest {
		if ctx.Err() != nil {
			return from
		}

		to := min(latest, from+s.opts.MaxBlockRange-1)
		query.FromBlock = new(big.Int).SetUint64(from)
		query.ToBlock = new(big.Int).SetUint64(to)

		logs, err := filterer.FilterLogs(ctx, query)
		if err != nil {
			if ctx.Err() == nil {
				s.report(fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err))
			}
			return from
		}

		for _, log := range logs {
			if len(log.Topics) == 0 {
				continue
			}
			if name, ok := names[log.Topics[0]]; ok {
				s.dispatch(name, log)
			}
		}
		from = to + 1
	}

	return from
}

func (s *Subscription) dispatch(name string, log types.Log) {
	if log.Removed {
		s.logger.With("event", name).With("tx_hash", log.TxHash.Hex()).Debug("ignoring log removed by reorg")
		return
	}

	fields, err := Decode(s.abi.Events[name], log)
	if err != nil {
		s.logger.With("event", name).With("err", err.Error()).Warn("failed to decode event")
		return
	}

	s.handler(Event{
		Name:    name,
		Address: log.Address,
		Fields:  fields,
		Block:   log.BlockNumber,
		TxHash:  log.TxHash,
	})
}

func (s *Subscription) report(err error) {
	s.logger.With("err", err.Error()).Warn("event listener error")
	select {
	case s.errs <- err:
	default:
	}
}

// Decode unpacks both the indexed and the data arguments of log into a map keyed by
// argument name.
func Decode(event abi.Event, log types.Log) (map[string]any, error) {
	fields := make(map[string]any)
	if err := event.Inputs.UnpackIntoMap(fields, log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", event.Name, err)
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) == 0 {
		return fields, nil
	}

	if len(log.Topics) < len(indexed)+1 {
		return nil, fmt.Errorf("%s log has %d topics, want %d", event.Name, len(log.Topics), len(indexed)+1)
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse %s topics: %w", event.Name, err)
	}

	return fields, nil
}
