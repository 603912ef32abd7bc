// Package session carries the ambient identity a write operation runs
// under. It replaces any notion of a global "current user": operations that
// are scoped to the logged-in user take a *Session argument explicitly, and
// logout or account switch invalidates simply by constructing a new Session
// for the next account.
package session

// Device identifies this client installation for device-scoped operations.
type Device struct {
	ID           string
	PushProvider string
}

// Session is the current user context. A nil *Session means "no user
// logged in"; operations requiring one fail with a precondition error.
type Session struct {
	UserID string
	Device *Device
}

// New returns a session for the given user id.
func New(userID string) *Session {
	return &Session{UserID: userID}
}

// WithDevice returns a copy of the session with the device registered.
func (s *Session) WithDevice(d Device) *Session {
	cp := *s
	cp.Device = &d
	return &cp
}

// Valid reports whether the session identifies a user.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != ""
}
