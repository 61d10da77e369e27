package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "unihub"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanApprovalResolved — канал для трансляции резолюций заявок.
	// Формат сообщения: "{request_id}:{STATUS}". Вычитывается дашбордами
	// и нотификационным сервисом.
	RedisChanApprovalResolved = RedisNamespace + ":approvals:resolved"
)

// ApprovalEventKey генератор ключей для точечных подписок на одну заявку
func ApprovalEventKey(requestID string) string {
	return fmt.Sprintf("%s:approvals:request:%s", RedisNamespace, requestID)
}
