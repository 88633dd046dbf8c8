package domain

// PartyStats is a point-in-time snapshot exposed by the health endpoint.
type PartyStats struct {
	GatewayConnections int
	WatchedRooms       int
}
