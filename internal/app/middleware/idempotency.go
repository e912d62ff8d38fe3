package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"sprinter/internal/app/commands"
)

// IdempotentCommand is implemented by commands whose results may be replayed.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer the stored payload decodes into.
	ResultPrototype() any
}

// ReservationTimeout bounds how long an unfinished request blocks its key.
const ReservationTimeout = time.Minute

var ErrRequestInProgress = errors.New("middleware: request with this idempotency key is in progress")

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	Pending    bool
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	// Reserve marks key as in flight. It reports false when a result is stored or
	// another reservation younger than ReservationTimeout holds the key.
	Reserve(ctx context.Context, key string) (bool, error)
	// Save stores the outcome and replaces the reservation.
	Save(ctx context.Context, rec IdempotencyRecord) error
	// Release drops a reservation that produced no result.
	Release(ctx context.Context, key string) error
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the first outcome recorded for a key. The key is reserved before
// the command runs, so a concurrent duplicate gets ErrRequestInProgress. Failed outcomes
// release the key so that a client may retry after a transient error.
func Idempotency(store IdempotencyStore) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found && !rec.Pending {
				return replay(idCmd, rec)
			}
			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				return nil, err
			}
			if !reserved {
				rec, found, err = store.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				if found && !rec.Pending {
					return replay(idCmd, rec)
				}
				return nil, ErrRequestInProgress
			}

			result, err := next.Dispatch(ctx, cmd)
			if err != nil {
				_ = store.Release(context.WithoutCancel(ctx), key)
				return nil, err
			}
			record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
			if result != nil {
				payload, encErr := json.Marshal(result)
				if encErr != nil {
					_ = store.Release(context.WithoutCancel(ctx), key)
					return nil, encErr
				}
				record.Payload = payload
			}
			if err := store.Save(ctx, record); err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

func replay(cmd IdempotentCommand, rec IdempotencyRecord) (any, error) {
	if rec.Error != "" {
		return nil, errors.New(rec.Error)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := json.Unmarshal(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
