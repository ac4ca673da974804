package policy

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Listen — "живучая" подписка на канал инвалидаций политик.
// Реестр публикует "fromAgent|toAgent" на каждую мутацию; каждый инстанс
// выбрасывает пару из своего кэша. При каждом (пере)подключении выполняется
// полный Refresh — сигналы, пропущенные за время обрыва, не теряются.
// Блокирует до отмены ctx, запускать в отдельной горутине.
func (c *PairCache) Listen(ctx context.Context, rdb *redis.Client, channel string) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			c.logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		// Синхронизация на каждом успешном коннекте
		if err := c.Refresh(ctx); err != nil {
			c.logger.Error("cache sync failed on reconnect", zap.Error(err))
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				// Формат сигнала "fromAgent|toAgent"; ':' внутри DID,
				// поэтому разделитель — '|'
				parts := strings.SplitN(msg.Payload, "|", 2)
				if len(parts) != 2 {
					c.logger.Error("invalid invalidation signal", zap.String("payload", msg.Payload))
					continue
				}

				c.Invalidate(parts[0], parts[1])
			}
		}

		pubsub.Close()
		time.Sleep(time.Second)
	}
}
