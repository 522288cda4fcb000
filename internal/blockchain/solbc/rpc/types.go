// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 5 * time.Second
	MaxRetries     = 3
	RetryDelay     = 200 * time.Millisecond
)

// NodeClient представляет отдельный RPC узел
type NodeClient struct {
	Client  *rpc.Client
	URL     string
	active  bool
	mutex   sync.RWMutex
	metrics *metrics
}

// metrics содержит метрики производительности RPC узла
type metrics struct {
	successCount uint64
	errorCount   uint64
	latency      time.Duration
	mutex        sync.RWMutex
}

// Options управляет повторами и таймаутами пула.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions возвращает настройки по умолчанию.
func DefaultOptions() Options {
	return Options{
		Timeout:    DefaultTimeout,
		MaxRetries: MaxRetries,
		RetryDelay: RetryDelay,
	}
}

// LatencyObserver получает длительность каждого RPC вызова.
type LatencyObserver interface {
	RecordRPCLatency(method, endpoint string, duration time.Duration)
}

// Pool представляет пул RPC клиентов
type Pool struct {
	clients   []*NodeClient
	logger    *zap.Logger
	opts      Options
	observer  LatencyObserver
	currIndex int
	mutex     sync.Mutex
}
