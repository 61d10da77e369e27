package audit

/*
Файл trail.go реализует журнал событий workflow (Audit Trail).

Ключевые особенности архитектуры:
- Non-blocking Logging: события уходят из Hot Path сервиса через неблокирующий
  канал, задержки записи в БД не влияют на Response Time операций.
- Batching & Efficiency: накопление событий в памяти и пакетная запись
  (Bulk Insert) в PostgreSQL по таймеру или при достижении лимита.
- Drain Pattern & Graceful Shutdown: при остановке буфер вычитывается до конца,
  Final Flush гарантирует отсутствие потерь при перезагрузке сервиса.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Trail struct {
	ch     chan Event       // Буфер для асинхронности
	repo   StorageInterface // Интерфейс для Postgres
	logger *zap.Logger
	wg     sync.WaitGroup

	flushInterval time.Duration
	batchSize     int

	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTrail(repo StorageInterface, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *Trail {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Trail{
		ch:            make(chan Event, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		flushInterval: flushInterval,
		batchSize:     100,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	// Drain Pattern: завершение воркера происходит исключительно через
	// закрытие входного канала — сначала вычитываются остатки, потом flush.
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event Event) {
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: при переполнении буфера событие не блокирует вызывающего
	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("request_id", event.RequestID),
			zap.String("kind", event.Kind),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background, так как основной контекст может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали всё — финальный сброс и выход
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// NopAuditor — заглушка для тестов и конфигураций без журнала
type NopAuditor struct{}

func (NopAuditor) Log(Event) {}
