package entity

// Player is one participant of a game room. ConnectionID is empty for
// players known only through lobby membership who have not attached a
// realtime connection yet.
type Player struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ConnectionID string `json:"-"`
}

func (that *Player) IsConnected() bool {
	return that.ConnectionID != ""
}

// LobbyMember is a roster entry read from the persistence gateway.
type LobbyMember struct {
	ID   int64
	Name string
}
