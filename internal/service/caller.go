package service

// Caller is the authenticated-caller context passed explicitly into every
// operation. Controllers build it from the request; services never reach into
// ambient request state.
type Caller struct {
	UserID uint
}
