package cache

import (
	"context"
	"errors"
	"sync"
)

// LocalHub связывает несколько Tiered внутри одного процесса.
// Доставка синхронная: к возврату из PublishInvalidation все остальные
// узлы уже обработали ключ.
type LocalHub struct {
	mu    sync.RWMutex
	nodes map[*localInvalidator]struct{}
}

// NewLocalHub создаёт пустой хаб
func NewLocalHub() *LocalHub {
	return &LocalHub{nodes: make(map[*localInvalidator]struct{})}
}

// Invalidator возвращает нового участника хаба
func (h *LocalHub) Invalidator() Invalidator {
	li := &localInvalidator{hub: h}
	h.mu.Lock()
	h.nodes[li] = struct{}{}
	h.mu.Unlock()
	return li
}

type localInvalidator struct {
	hub     *LocalHub
	mu      sync.RWMutex
	handler InvalidationHandler
}

func (l *localInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.hub.mu.RLock()
	peers := make([]*localInvalidator, 0, len(l.hub.nodes))
	for n := range l.hub.nodes {
		if n != l {
			peers = append(peers, n)
		}
	}
	l.hub.mu.RUnlock()

	var errs []error
	for _, p := range peers {
		p.mu.RLock()
		h := p.handler
		p.mu.RUnlock()
		if h != nil {
			if err := h(key); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (l *localInvalidator) SubscribeInvalidations(_ context.Context, handler InvalidationHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handler != nil {
		return errors.New("подписка на инвалидации уже оформлена")
	}
	l.handler = handler
	return nil
}

func (l *localInvalidator) Close() error {
	l.hub.mu.Lock()
	delete(l.hub.nodes, l)
	l.hub.mu.Unlock()
	return nil
}
