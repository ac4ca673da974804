package infra

const (
	// RedisNamespace — базовый префикс для изоляции данных реестра в Redis
	RedisNamespace = "a2a"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanPolicyUpdate — канал инвалидации кэшей политик.
	// Payload: "fromAgent|toAgent" измененной пары.
	RedisChanPolicyUpdate = RedisNamespace + ":policies:update"
)
