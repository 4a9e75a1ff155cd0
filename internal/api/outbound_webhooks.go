package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/logging"
	"github.com/gin-gonic/gin"
)

// OutboundWebhook представляет исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // События, на которые подписан
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// EventTypes события, на которые можно подписать webhook
var EventTypes = []string{
	eventbus.EventSeedFound,
	eventbus.EventSearchStarted,
	eventbus.EventSearchFinished,
}

// OutboundWebhookManager пересылает события шины во внешние webhook'и
type OutboundWebhookManager struct {
	webhooks   map[uint64]*OutboundWebhook
	eventQueue chan *eventbus.Envelope
	mu         sync.RWMutex
	nextID     uint64
	httpClient *http.Client
	logger     *logging.Logger
	retryDelay time.Duration

	sub       eventbus.Subscription
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewOutboundWebhookManager создает новый менеджер исходящих webhook'ов
func NewOutboundWebhookManager(logger *logging.Logger) *OutboundWebhookManager {
	if logger == nil {
		logger = logging.GetAPILogger()
	}
	manager := &OutboundWebhookManager{
		webhooks:   make(map[uint64]*OutboundWebhook),
		eventQueue: make(chan *eventbus.Envelope, 1000),
		nextID:     1,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		retryDelay: time.Second,
		done:       make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.eventWorker()

	return manager
}

// Attach подписывает менеджер на события шины
func (owm *OutboundWebhookManager) Attach(bus eventbus.EventBus) error {
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: EventTypes}, func(_ context.Context, ev *eventbus.Envelope) {
		owm.Enqueue(ev)
	})
	if err != nil {
		return fmt.Errorf("подписка webhook'ов на шину: %w", err)
	}
	owm.mu.Lock()
	owm.sub = sub
	owm.mu.Unlock()
	return nil
}

// AddWebhook проверяет и добавляет новый webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) (*OutboundWebhook, error) {
	if err := validateWebhook(&webhook); err != nil {
		return nil, err
	}

	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true
	webhook.LastUsed = nil
	webhook.FailureCount = 0

	if webhook.Timeout <= 0 {
		webhook.Timeout = 30
	}
	if webhook.RetryCount <= 0 {
		webhook.RetryCount = 3
	}

	owm.webhooks[webhook.ID] = &webhook
	return redact(&webhook), nil
}

func validateWebhook(w *OutboundWebhook) error {
	u, err := url.ParseRequestURI(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("неверный URL webhook'а: %q", w.URL)
	}
	if len(w.Events) == 0 {
		return errors.New("не указаны события")
	}
	for _, ev := range w.Events {
		if ev == "*" {
			continue
		}
		known := false
		for _, t := range EventTypes {
			if ev == t {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("неизвестное событие %q", ev)
		}
	}
	return nil
}

// redact возвращает копию без секрета
func redact(w *OutboundWebhook) *OutboundWebhook {
	cp := *w
	cp.Secret = ""
	cp.Events = append([]string(nil), w.Events...)
	return &cp
}

// GetWebhooks возвращает список всех webhook'ов по возрастанию ID
func (owm *OutboundWebhookManager) GetWebhooks() []*OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhooks := make([]*OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		webhooks = append(webhooks, redact(webhook))
	}
	sort.Slice(webhooks, func(i, j int) bool { return webhooks[i].ID < webhooks[j].ID })
	return webhooks
}

// GetWebhook возвращает webhook по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) *OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return nil
	}
	return redact(webhook)
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, exists := owm.webhooks[id]; !exists {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// Enqueue ставит событие в очередь доставки. При переполнении событие теряется.
func (owm *OutboundWebhookManager) Enqueue(ev *eventbus.Envelope) {
	select {
	case <-owm.done:
		return
	default:
	}

	select {
	case owm.eventQueue <- ev:
	default:
		owm.logger.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

// Close отписывается от шины и дожидается текущих доставок
func (owm *OutboundWebhookManager) Close() {
	owm.closeOnce.Do(func() {
		owm.mu.RLock()
		sub := owm.sub
		owm.mu.RUnlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		close(owm.done)
		owm.wg.Wait()
	})
}

// eventWorker обрабатывает события из очереди
func (owm *OutboundWebhookManager) eventWorker() {
	defer owm.wg.Done()
	for {
		select {
		case <-owm.done:
			return
		case ev := <-owm.eventQueue:
			owm.processEvent(ev)
		}
	}
}

// processEvent рассылает событие подписанным webhook'ам
func (owm *OutboundWebhookManager) processEvent(ev *eventbus.Envelope) {
	body, err := json.Marshal(ev)
	if err != nil {
		owm.logger.Error("❌ Ошибка маршалинга события %s: %v", ev.ID, err)
		return
	}

	owm.mu.RLock()
	targets := make([]OutboundWebhook, 0)
	for _, webhook := range owm.webhooks {
		if webhook.Active && isSubscribedToEvent(webhook, ev.EventType) {
			targets = append(targets, *webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range targets {
		owm.wg.Add(1)
		go func(w OutboundWebhook) {
			defer owm.wg.Done()
			owm.sendToWebhook(w, ev, body)
		}(webhook)
	}
}

func isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// sendToWebhook доставляет событие с повторами
func (owm *OutboundWebhookManager) sendToWebhook(webhook OutboundWebhook, ev *eventbus.Envelope, body []byte) {
	var signature string
	if webhook.Secret != "" {
		signature = generateSignature(body, webhook.Secret)
	}

	success := false
retry:
	for attempt := 0; attempt <= webhook.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-owm.done:
				break retry
			case <-time.After(time.Duration(attempt) * owm.retryDelay):
			}
		}

		status, err := owm.post(webhook, ev, body, signature)
		if err != nil {
			owm.logger.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, webhook.RetryCount+1, webhook.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			success = true
			owm.logger.Debug("✅ Событие %s отправлено в webhook %s", ev.EventType, webhook.Name)
			break retry
		}
		owm.logger.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", webhook.Name, status, attempt+1)
	}

	owm.mu.Lock()
	if stored, ok := owm.webhooks[webhook.ID]; ok {
		now := time.Now()
		stored.LastUsed = &now
		if !success {
			stored.FailureCount++
		}
	}
	owm.mu.Unlock()
}

// post выполняет один запрос; тело пересоздаётся на каждой попытке
func (owm *OutboundWebhookManager) post(webhook OutboundWebhook, ev *eventbus.Envelope, body []byte, signature string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cavegen/"+Version)
	req.Header.Set("X-Event-Type", ev.EventType)
	req.Header.Set("X-Event-ID", ev.ID)
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// generateSignature генерирует HMAC подпись
func generateSignature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// === Handlers ===

func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	respondOK(c, http.StatusOK, "Webhook'и", gin.H{
		"webhooks":    rs.webhooks.GetWebhooks(),
		"event_types": EventTypes,
	})
}

func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var req OutboundWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	webhook, err := rs.webhooks.AddWebhook(req)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	rs.logger.Info("🔗 Добавлен webhook %s (%s)", webhook.Name, webhook.URL)
	respondOK(c, http.StatusCreated, "Webhook создан", webhook)
}

func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный ID")
		return
	}
	if !rs.webhooks.DeleteWebhook(id) {
		respondError(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respondOK(c, http.StatusOK, "Webhook удалён", gin.H{"id": id})
}
