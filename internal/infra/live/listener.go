package live

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const Channel = "slabs_changed"

const (
	reconnectDelay = 2 * time.Second
	closeTimeout   = 5 * time.Second
)

// listenConn: соединение, принадлежащее только слушателю.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

type connector func(ctx context.Context) (listenConn, error)

// dedicatedConn забирает соединение из пула насовсем (Hijack):
// соединение с LISTEN в пул не возвращается, при выходе закрывается.
func dedicatedConn(pool *pgxpool.Pool) connector {
	return func(ctx context.Context) (listenConn, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return c.Hijack(), nil
	}
}

// Listen держит LISTEN slabs_changed и передаёт изменения в хаб.
// При обрыве соединения переподключается, пока жив ctx.
func (h *Hub) Listen(ctx context.Context, pool *pgxpool.Pool) {
	h.listen(ctx, dedicatedConn(pool))
}

func (h *Hub) listen(ctx context.Context, connect connector) {
	for {
		err := h.listenOnce(ctx, connect)
		if ctx.Err() != nil {
			return
		}
		h.log.Warn("slabs listener stopped, reconnecting", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (h *Hub) listenOnce(ctx context.Context, connect connector) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := conn.Close(cctx); err != nil {
			h.log.Debug("listener conn close", "err", err)
		}
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	h.log.Info("listening for slab changes", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		userID, err := uuid.Parse(n.Payload)
		if err != nil {
			h.log.Warn("bad notification payload", "payload", n.Payload)
			continue
		}
		h.Changed(userID)
	}
}
