package kv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sushant-115/sagakv/pkg/connection"
)

// RemoteConfig holds the settings for a remote store client.
type RemoteConfig struct {
	// Address is the host:port of the sagakv server.
	Address string `yaml:"address"`
	// MaxConns bounds the number of pooled TCP connections.
	MaxConns int `yaml:"max_conns"`
	// DialTimeout applies to each new connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// RequestTimeout is the per-call read/write deadline.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RequestsPerSecond throttles outgoing requests. Zero disables
	// throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Remote is a Client that speaks the newline-delimited JSON protocol to a
// sagakv server over pooled TCP connections. It is safe for concurrent
// use; each call checks a connection out of the pool for the duration of
// one request/response exchange.
type Remote struct {
	pool    *connection.Pool
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewRemote creates a remote client. logger may be nil.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 4
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Remote{
		pool:    connection.NewPool(cfg.Address, cfg.MaxConns, cfg.DialTimeout),
		limiter: limiter,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}
}

// Close releases the underlying connection pool.
func (r *Remote) Close() error {
	return r.pool.Close()
}

// roundTrip sends one request and reads one response on a pooled
// connection. Connections that hit an I/O error are discarded rather than
// returned to the pool.
func (r *Remote) roundTrip(req wireRequest) (wireResponse, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(context.Background()); err != nil {
			return wireResponse{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	conn, err := r.pool.Get()
	if err != nil {
		return wireResponse{}, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return wireResponse{}, fmt.Errorf("encode request: %w", err)
	}
	payload = append(payload, '\n')

	conn.SetDeadline(time.Now().Add(r.timeout))
	if _, err := conn.Write(payload); err != nil {
		conn.Discard()
		return wireResponse{}, fmt.Errorf("%w: write: %v", ErrConnectionFailed, err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		conn.Discard()
		return wireResponse{}, fmt.Errorf("%w: read: %v", ErrConnectionFailed, err)
	}
	conn.SetDeadline(time.Time{})
	conn.Close()

	var resp wireResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		r.logger.Warn("Malformed response from server", zap.Error(err))
		return wireResponse{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return resp, nil
}

func (r *Remote) Get(key string) (GetResult, error) {
	resp, err := r.roundTrip(wireRequest{Command: cmdGet, Key: key})
	if err != nil {
		return GetResult{}, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return GetResult{}, err
	}
	return GetResult{Cas: Cas(resp.Cas), Value: resp.Value}, nil
}

func (r *Remote) Store(key string, value []byte, mode StoreMode, opts StoreOptions) (MutationResult, error) {
	resp, err := r.roundTrip(wireRequest{
		Command:    cmdStore,
		Key:        key,
		Value:      value,
		Mode:       mode.String(),
		Cas:        uint64(opts.Cas),
		Expiry:     opts.Expiry,
		Flags:      opts.Flags,
		Durability: int(opts.Durability),
	})
	if err != nil {
		return MutationResult{}, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cas: Cas(resp.Cas)}, nil
}

func (r *Remote) Remove(key string, opts RemoveOptions) (MutationResult, error) {
	resp, err := r.roundTrip(wireRequest{
		Command:    cmdRemove,
		Key:        key,
		Cas:        uint64(opts.Cas),
		Durability: int(opts.Durability),
	})
	if err != nil {
		return MutationResult{}, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cas: Cas(resp.Cas)}, nil
}

func (r *Remote) Counter(key string, delta int64, opts CounterOptions) (CounterResult, error) {
	resp, err := r.roundTrip(wireRequest{
		Command:    cmdCounter,
		Key:        key,
		Delta:      delta,
		Initial:    opts.Initial,
		Expiry:     opts.Expiry,
		Durability: int(opts.Durability),
	})
	if err != nil {
		return CounterResult{}, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return CounterResult{}, err
	}
	return CounterResult{Cas: Cas(resp.Cas), Value: resp.Counter}, nil
}

func (r *Remote) Touch(key string, expiry uint32) (MutationResult, error) {
	resp, err := r.roundTrip(wireRequest{Command: cmdTouch, Key: key, Expiry: expiry})
	if err != nil {
		return MutationResult{}, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Cas: Cas(resp.Cas)}, nil
}

func (r *Remote) Unlock(key string, cas Cas) error {
	resp, err := r.roundTrip(wireRequest{Command: cmdUnlock, Key: key, Cas: uint64(cas)})
	if err != nil {
		return err
	}
	return statusToErr(resp.Status, resp.Message)
}

func (r *Remote) Query(statement string, opts QueryOptions) ([]QueryRow, error) {
	resp, err := r.roundTrip(wireRequest{Command: cmdQuery, Statement: statement, Limit: opts.Limit})
	if err != nil {
		return nil, err
	}
	if err := statusToErr(resp.Status, resp.Message); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

var _ Client = (*Remote)(nil)
