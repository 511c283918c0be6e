package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}
