package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeConn struct {
	mu     sync.Mutex
	execs  []string
	notes  chan *pgconn.Notification
	closed int
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-c.notes:
		if !ok {
			return nil, errors.New("conn lost")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func TestListenOnceClosesConnAfterError(t *testing.T) {
	h := newTestHub()
	user := uuid.New()
	conn := dial(t, h, user)

	fc := &fakeConn{notes: make(chan *pgconn.Notification, 2)}
	fc.notes <- &pgconn.Notification{Channel: Channel, Payload: "not-a-uuid"}
	fc.notes <- &pgconn.Notification{Channel: Channel, Payload: user.String()}
	close(fc.notes)

	err := h.listenOnce(context.Background(), func(context.Context) (listenConn, error) { return fc, nil })
	if err == nil {
		t.Fatal("expected connection error")
	}
	if len(fc.execs) != 1 || fc.execs[0] != "LISTEN "+Channel {
		t.Fatalf("execs=%v", fc.execs)
	}
	if fc.closed != 1 {
		t.Fatalf("closed=%d", fc.closed)
	}

	ev, ok := readEvent(t, conn, time.Second)
	if !ok || ev.Type != EventReload {
		t.Fatalf("ev=%+v ok=%v", ev, ok)
	}
}

func TestListenReconnectsWithFreshConn(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu    sync.Mutex
		conns []*fakeConn
	)
	connect := func(context.Context) (listenConn, error) {
		mu.Lock()
		defer mu.Unlock()
		fc := &fakeConn{notes: make(chan *pgconn.Notification)}
		if len(conns) == 0 {
			close(fc.notes)
		} else {
			cancel()
		}
		conns = append(conns, fc)
		return fc, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.listen(ctx, connect)
	}()
	select {
	case <-done:
	case <-time.After(reconnectDelay + 2*time.Second):
		t.Fatal("listener did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(conns) != 2 {
		t.Fatalf("connects=%d", len(conns))
	}
	for i, fc := range conns {
		if fc.closed != 1 {
			t.Fatalf("conn %d closed=%d", i, fc.closed)
		}
	}
}
