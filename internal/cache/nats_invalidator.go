package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/cavegen/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultSubject subject уведомлений об инвалидации
const DefaultSubject = "cavegen.cache.invalidate"

// NATSInvalidator реализует Invalidator поверх NATS Pub/Sub.
// Собственные сообщения узла и повторы в окне дедупликации игнорируются.
type NATSInvalidator struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	window  time.Duration
	logger  *logging.Logger

	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	recentKeys map[string]time.Time
	keysMutex  sync.Mutex

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidationMessage сообщение об инвалидации ключа.
type InvalidationMessage struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// NewNATSInvalidator подключается к NATS. Пустой NodeID заменяется UUID.
func NewNATSInvalidator(cfg Config) (*NATSInvalidator, error) {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.DedupeWindow == 0 {
		cfg.DedupeWindow = 5 * time.Second
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	logger := logging.GetComponentLogger("cache")

	opts := []nats.Option{
		nats.Name("cavegen-cache-" + cfg.NodeID),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("⚠️ NATS отключён: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("🔌 NATS переподключён к %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS: %w", err)
	}

	n := &NATSInvalidator{
		conn:       conn,
		subject:    cfg.Subject,
		nodeID:     cfg.NodeID,
		window:     cfg.DedupeWindow,
		logger:     logger,
		stopCh:     make(chan struct{}),
		recentKeys: make(map[string]time.Time),
	}
	n.startDedupeCleanup()

	logger.Info("✅ NATS invalidator: %s (subject %s, узел %s)", cfg.NATSURL, cfg.Subject, cfg.NodeID)
	return n, nil
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.isDuplicate(key) {
		return nil
	}

	data, err := json.Marshal(InvalidationMessage{Key: key, Timestamp: time.Now().UTC(), NodeID: n.nodeID})
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("сериализация инвалидации: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("публикация инвалидации %s: %w", key, err)
	}

	n.recordKey(key)
	atomic.AddInt64(&n.publishedCount, 1)
	n.logger.Debug("📤 Инвалидация %s", key)
	return nil
}

// SubscribeInvalidations подписывается на уведомления других узлов.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription != nil {
		return errors.New("подписка на инвалидации уже оформлена")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.subject, n.handleInvalidationMessage)
	if err != nil {
		return fmt.Errorf("подписка на инвалидации: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()
	return nil
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	n.closeOnce.Do(func() {
		close(n.stopCh)
		n.wg.Wait()
		n.conn.Close()
		n.logger.Info("👋 NATS invalidator закрыт")
	})
	return nil
}

// Stats возвращает счётчики публикаций и получений.
func (n *NATSInvalidator) Stats() (published, received, errs int64) {
	return atomic.LoadInt64(&n.publishedCount), atomic.LoadInt64(&n.receivedCount), atomic.LoadInt64(&n.errorsCount)
}

func (n *NATSInvalidator) handleInvalidationMessage(msg *nats.Msg) {
	atomic.AddInt64(&n.receivedCount, 1)

	var m InvalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		n.logger.Error("❌ Некорректное сообщение инвалидации: %v", err)
		return
	}
	if m.NodeID == n.nodeID || n.isDuplicate(m.Key) {
		return
	}
	n.recordKey(m.Key)

	if err := n.handler(m.Key); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		n.logger.Error("❌ Обработка инвалидации %s: %v", m.Key, err)
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription == nil {
		return
	}
	if err := n.subscription.Unsubscribe(); err != nil {
		n.logger.Warn("⚠️ Отписка от инвалидаций: %v", err)
	}
	n.subscription = nil
}

func (n *NATSInvalidator) isDuplicate(key string) bool {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	lastSeen, exists := n.recentKeys[key]
	return exists && time.Since(lastSeen) < n.window
}

func (n *NATSInvalidator) recordKey(key string) {
	n.keysMutex.Lock()
	n.recentKeys[key] = time.Now()
	n.keysMutex.Unlock()
}

// startDedupeCleanup периодически удаляет устаревшие ключи дедупликации.
func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.window)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for key, ts := range n.recentKeys {
		if now.Sub(ts) > n.window {
			delete(n.recentKeys, key)
		}
	}
}
