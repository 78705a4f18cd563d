package monitor

// LinkState tracks connectivity to the collector's network. It replaces
// the connection flags the network collaborator used to flip from event
// callbacks: all changes arrive as discrete events through the
// orchestrator's event channel.
type LinkState int

const (
	Disconnected LinkState = iota
	Connecting
	Connected
)

func (s LinkState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

type link struct {
	state LinkState
}

func (l *link) apply(target LinkState) {
	if l.state == target {
		return
	}
	// Going straight from disconnected to connected is allowed, some
	// network collaborators only report up/down.
	log.Infof("Link %s -> %s", l.state, target)
	l.state = target
}

func (l *link) connected() bool {
	return l.state == Connected
}
