package request

// CreateGuestRequest is the request body for creating a guest identity
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering an identity
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PlantRequest is the request body for planting
type PlantRequest struct {
	Kind string `json:"kind"`
}

// CreateDelegationRequest is the request body for delegating a farm to a signer
type CreateDelegationRequest struct {
	SignerID        string `json:"signer_id"`
	DurationSeconds int64  `json:"duration_seconds"`
}

// TendRequest is the request body for letting a bot tend a farm
type TendRequest struct {
	Strategy string `json:"strategy"`
}
