package dto

type HealthCheckResponse struct {
	Status  string `json:"status" example:"healthy"`
	Service string `json:"service" example:"resource-watcher"`
	URI     string `json:"uri" example:"https://api.example.com/releases/latest"`
}
