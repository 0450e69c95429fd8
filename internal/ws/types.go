package ws

const (
	// server - client
	MsgReady   = "ready"
	MsgRotated = "rotated"
	MsgExpired = "expired"
)
