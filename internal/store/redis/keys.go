package redis

// Key namespace for everything this package writes. Mirrors the spec's
// Redis key layout (balance:{session_id}, position:{position_id}, ...)
// under a versioned prefix so a schema change never collides with a prior
// run's leftover keys.
const keyPrefix = "dhan_scalper:v1:"

func balanceKey(sessionID string) string {
	return keyPrefix + "balance:" + sessionID
}

func positionKey(positionKey string) string {
	return keyPrefix + "position:" + positionKey
}

func positionSetKey(sessionID string) string {
	return keyPrefix + "positions:" + sessionID
}

func orderKey(orderID string) string {
	return keyPrefix + "order:" + orderID
}

func orderSetKey(sessionID string) string {
	return keyPrefix + "orders:" + sessionID
}

func sessionKey(sessionID string) string {
	return keyPrefix + "session:" + sessionID
}

func sessionMetaKey(sessionID string) string {
	return keyPrefix + "session_meta:" + sessionID
}

func peakKey(securityID string) string {
	return keyPrefix + "peak:" + securityID
}

func triggerKey(securityID string) string {
	return keyPrefix + "trigger:" + securityID
}

func trendKey(securityID string) string {
	return keyPrefix + "trend:" + securityID
}

func dedupeKey(actionKey string) string {
	return keyPrefix + "dedupe:" + actionKey
}
