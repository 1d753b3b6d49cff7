package data

import (
	"fmt"

	"github.com/unred/signal-bridge/internal/biz/repo"
	"github.com/unred/signal-bridge/internal/infra/converter"
	"github.com/unred/signal-bridge/internal/infra/feishu"
)

// State backends
const (
	StateBackendJSON   = "json"
	StateBackendSQLite = "sqlite"
)

// Options selects and sizes the stores
type Options struct {
	StateBackend  string
	StateFile     string
	StateDBPath   string
	QueueCapacity int

	// Feishu mirror, nil client disables it
	FeishuClient *feishu.Client
	NotifyChatID string
}

// Repositories contains all repositories
type Repositories struct {
	Watermark repo.WatermarkRepo
	Queue     repo.QueueRepo
	Converter repo.ConverterRepo
	Notifier  repo.NotifierRepo // nil when no mirror is configured
}

// NewRepositories creates all repositories
func NewRepositories(converterClient *converter.Client, opts Options) (*Repositories, error) {
	watermarks, err := NewWatermarkRepo(opts.StateBackend, opts.StateFile, opts.StateDBPath)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Watermark: watermarks,
		Queue:     NewQueueRepo(opts.QueueCapacity),
		Converter: NewConverterRepo(converterClient),
	}
	if opts.FeishuClient != nil && opts.NotifyChatID != "" {
		repos.Notifier = NewFeishuNotifier(opts.FeishuClient, opts.NotifyChatID)
	}
	return repos, nil
}

// NewWatermarkRepo opens the watermark store for the given backend
func NewWatermarkRepo(backend, file, dbPath string) (repo.WatermarkRepo, error) {
	switch backend {
	case "", StateBackendJSON:
		return NewJSONWatermarkRepo(file)
	case StateBackendSQLite:
		return NewSQLiteWatermarkRepo(dbPath)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// Close releases the stores
func (r *Repositories) Close() error {
	return r.Watermark.Close()
}
