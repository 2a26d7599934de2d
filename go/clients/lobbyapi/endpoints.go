package lobbyapi

const (
	// API Endpoints, relative to the API prefix (e.g. https://host/api)
	MeEndpoint     = "/auth/me"
	TablesEndpoint = "/lobby/tables"
	HealthEndpoint = "/health"
)
