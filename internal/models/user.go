package models

// User is referenced by id and email only; account management lives elsewhere.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
