package server

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries the issued JWT for Bearer flows.
type TokenResponse struct {
	Token string `json:"token"`
}

// ChatRequest is one assistant turn's input. Provider optionally overrides
// the stored preference for this turn only.
type ChatRequest struct {
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
}

// HTTPError is the unified error body every handler returns.
type HTTPError struct {
	Error string `json:"error"`
}
