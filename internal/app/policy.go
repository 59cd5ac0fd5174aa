package app

import "github.com/meshline/meshline/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	KickConn
)

// Policy decides what happens to a consumer whose send buffer is full.
type Policy interface {
	OnBackpressure(conn domain.ConnID) BackpressureAction
}

// SimplePolicy evicts slow consumers; the event stream must not stall
// behind one bad connection.
type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(domain.ConnID) BackpressureAction {
	return KickConn
}

// Admission decides whether a connection may enter a room. Room-size
// limits and access control hook in here; nil admits everyone.
type Admission interface {
	Admit(conn domain.ConnID, room domain.RoomID) bool
}
