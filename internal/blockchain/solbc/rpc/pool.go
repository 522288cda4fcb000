// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// NewPool создает пул клиентов по списку URL
func NewPool(urls []string, logger *zap.Logger, opts Options) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoActiveClients
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = RetryDelay
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	clients := make([]*NodeClient, 0, len(urls))
	for _, u := range urls {
		clients = append(clients, NewClient(u))
	}
	return &Pool{
		clients: clients,
		logger:  logger.Named("rpc_pool"),
		opts:    opts,
	}, nil
}

// SetObserver подключает сбор метрик задержки.
func (p *Pool) SetObserver(o LatencyObserver) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.observer = o
}

// Clients возвращает узлы пула.
func (p *Pool) Clients() []*NodeClient {
	return p.clients
}

// GetNextClient возвращает текущий активный клиент. Если все узлы помечены
// неактивными, они снова включаются: единственный узел лучше, чем ни одного.
func (p *Pool) GetNextClient() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.HasActiveClients() {
		p.logger.Warn("All RPC nodes inactive, reactivating")
		for _, c := range p.clients {
			c.SetActive(true)
		}
		return p.clients[p.currIndex]
	}

	for i := 0; i < len(p.clients); i++ {
		c := p.clients[(p.currIndex+i)%len(p.clients)]
		if c.IsActive() {
			p.currIndex = (p.currIndex + i) % len(p.clients)
			return c
		}
	}
	return p.clients[p.currIndex]
}

// HasActiveClients проверяет наличие активных клиентов в пуле.
// Не захватывает p.mutex.
func (p *Pool) HasActiveClients() bool {
	for _, client := range p.clients {
		if client.IsActive() {
			return true
		}
	}
	return false
}

func (p *Pool) markFailed(c *NodeClient) {
	c.SetActive(false)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.clients[p.currIndex] == c {
		p.currIndex = (p.currIndex + 1) % len(p.clients)
	}
}

func (p *Pool) observe(method, endpoint string, d time.Duration) {
	p.mutex.Lock()
	o := p.observer
	p.mutex.Unlock()
	if o != nil {
		o.RecordRPCLatency(method, endpoint, d)
	}
}

// Execute выполняет операцию на узлах пула с экспоненциальными повторами.
// Узел, вернувший ошибку, помечается неактивным, и следующая попытка идет на другой.
func Execute[T any](ctx context.Context, p *Pool, method string, op func(context.Context, *solanarpc.Client) (T, error)) (T, error) {
	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = p.opts.RetryDelay
	backoffPolicy.MaxInterval = p.opts.RetryDelay * 10

	notify := func(err error, duration time.Duration) {
		p.logger.Debug("Retrying RPC call", zap.String("method", method), zap.Error(err), zap.Duration("backoff", duration))
	}

	operation := func() (T, error) {
		client := p.GetNextClient()

		cctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()

		start := time.Now()
		res, err := op(cctx, client.Client)
		elapsed := time.Since(start)
		client.UpdateMetrics(err == nil, elapsed)
		p.observe(method, client.URL, elapsed)

		if err != nil {
			wrapped := NewError(err, client.URL, method)
			// отсутствующий аккаунт не лечится повтором
			if errors.Is(err, solanarpc.ErrNotFound) {
				return res, backoff.Permanent(wrapped)
			}
			p.markFailed(client)
			if ctx.Err() != nil {
				return res, backoff.Permanent(wrapped)
			}
			return res, wrapped
		}
		return res, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(uint(p.opts.MaxRetries+1)),
		backoff.WithNotify(notify))
}
