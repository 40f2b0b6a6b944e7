package empire

const (
	StatusRead   = "read"
	StatusUnread = "unread"
)

// Message is a guild board post or a private mail.
type Message struct {
	ID string
	// Time is a unix timestamp in seconds.
	Time       int64
	PlayerID   string
	PlayerName string
	Text       string
	// Status is StatusRead or StatusUnread.
	Status string
}

func (m Message) Key() string {
	return m.ID
}

func (m Message) Timestamp() int64 {
	return m.Time
}

func (m Message) WithKey(key string) Message {
	m.ID = key
	return m
}

type Player struct {
	ID string
	// Time is when the player was last seen, a unix timestamp in seconds.
	Time    int64
	Name    string
	Guild   string
	Level   float64
	Rank    int64
	Economy int64
	// Age is the account age in days.
	Age int64
}

func (p Player) Key() string {
	return p.ID
}

func (p Player) Timestamp() int64 {
	return p.Time
}

func (p Player) WithKey(key string) Player {
	p.ID = key
	return p
}

// Stats are the account statistics of the logged in player.
type Stats struct {
	Credits    int64
	Income     int64
	FleetSize  int64
	Technology int64
	Level      float64
	Rank       int64
}
