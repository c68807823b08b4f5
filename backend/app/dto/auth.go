package dto

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Role        string `json:"role"`
}

type RegisterRequest struct {
	Username      string `json:"username" validate:"required,max=64"`
	Password      string `json:"password" validate:"required,max=72"`
	Name          string `json:"name" validate:"max=128"`
	VehicleNumber string `json:"vehicle_number" validate:"max=32"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
