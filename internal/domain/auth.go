package domain

import "time"

// Actor is the identity a request acts as.
type Actor struct {
	UserID string
	Email  string
	Role   Role
	Zone   string
}

// ActorFromUser builds an actor from a loaded account.
func ActorFromUser(u *User) Actor {
	return Actor{UserID: u.ID, Email: u.Email, Role: u.Role, Zone: u.Zone}
}

// Token represents issued authentication token metadata.
type Token struct {
	Value     string
	SubjectID string
	Role      Role
	Zone      string
	ExpiresAt time.Time
}
