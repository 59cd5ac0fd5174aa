// Package domain contains entities without logic, just meta-data.
package domain

type (
	// ConnID identifies one live connection. It is never reused: a client
	// that reconnects gets a fresh ConnID.
	ConnID string

	// RoomID is a plain string namespace shared by chat and signaling rooms.
	RoomID string
)
