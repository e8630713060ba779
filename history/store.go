package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhpenta/imagestudio"
)

// ErrInvalidItem is returned when saving an item without an ID or result image.
var ErrInvalidItem = errors.New("invalid history item")

// Store is a HistoryRecorder that holds resources.
type Store interface {
	imagestudio.HistoryRecorder
	Close() error
}

// Options selects and configures a Store.
type Options struct {
	// Driver is one of memory, sqlite, postgres or redis.
	Driver string

	// DSN for sqlite and postgres.
	DSN string

	// RedisAddr for the redis driver.
	RedisAddr string
}

// Open creates the store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		return OpenSQL(opts.Driver, opts.DSN)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{Addr: opts.RedisAddr})
	default:
		return nil, fmt.Errorf("unsupported history driver: %s (supported: memory, sqlite, postgres, redis)", opts.Driver)
	}
}

func validateItem(item *imagestudio.HistoryItem) error {
	switch {
	case item == nil:
		return fmt.Errorf("%w: nil", ErrInvalidItem)
	case item.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	case item.ResultImage == "":
		return fmt.Errorf("%w: missing result image", ErrInvalidItem)
	}
	return nil
}
