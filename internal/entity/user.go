package entity

// UserLoginData is set on the request by the token middleware when scan
// routes require authentication.
type UserLoginData struct {
	ID       string
	Username string
	Email    string
}
