package domain

// Profile is the backend-owned identity record for a signed-in user. Role is
// carried as the raw backend string; the session layer parses it into the
// closed Role set.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
