package relay

// Channel is a named multicast set of connections, keyed by user identity.
// Groups use one channel each; membership here is a liveness cache of who
// is currently subscribed to real-time fan-out, not the authoritative
// group membership (that lives in storage).
type Channel struct {
	id      string
	members map[string]Sender
}

func newChannel(id string) *Channel {
	return &Channel{id: id, members: make(map[string]Sender)}
}

func (c *Channel) add(userID string, conn Sender) {
	c.members[userID] = conn
}

// remove deletes userID's membership if it is still owned by conn.
func (c *Channel) remove(userID string, conn Sender) bool {
	cur, ok := c.members[userID]
	if !ok || cur != conn {
		return false
	}
	delete(c.members, userID)
	return true
}

func (c *Channel) empty() bool {
	return len(c.members) == 0
}

// sendersExcept returns the connections of every member except exceptUserID.
func (c *Channel) sendersExcept(exceptUserID string) []Sender {
	conns := make([]Sender, 0, len(c.members))
	for id, conn := range c.members {
		if id == exceptUserID {
			continue
		}
		conns = append(conns, conn)
	}
	return conns
}

// Index maps a group identity to its channel. Entries are created lazily
// on first join and deleted as soon as the last member leaves.
//
// Not safe for concurrent use on its own; the Hub's lock owns it.
type Index struct {
	channels map[string]*Channel
}

func NewIndex() *Index {
	return &Index{channels: make(map[string]*Channel)}
}

// Join subscribes conn to the group's channel under userID. Joining a
// group twice has no additional effect.
func (ix *Index) Join(groupID, userID string, conn Sender) {
	ch, ok := ix.channels[groupID]
	if !ok {
		ch = newChannel(groupID)
		ix.channels[groupID] = ch
	}
	ch.add(userID, conn)
}

// Lookup returns the channel for groupID if any member is subscribed.
func (ix *Index) Lookup(groupID string) (*Channel, bool) {
	ch, ok := ix.channels[groupID]
	return ch, ok
}

// Leave removes userID's subscription from the group's channel and returns
// the connections of the remaining members. The group entry is deleted
// entirely once empty.
func (ix *Index) Leave(groupID, userID string, conn Sender) (remaining []Sender, wasMember bool) {
	ch, ok := ix.channels[groupID]
	if !ok {
		return nil, false
	}
	if !ch.remove(userID, conn) {
		return nil, false
	}
	if ch.empty() {
		delete(ix.channels, groupID)
		return nil, true
	}
	return ch.sendersExcept(userID), true
}

// Departure describes one group a disconnecting user was removed from.
type Departure struct {
	GroupID   string
	Remaining []Sender
}

// CascadeRemove drops userID from every channel that still lists this
// connection, mirroring Leave without requiring the client to leave each
// group explicitly first.
func (ix *Index) CascadeRemove(userID string, conn Sender) []Departure {
	var departures []Departure
	for groupID, ch := range ix.channels {
		if !ch.remove(userID, conn) {
			continue
		}
		if ch.empty() {
			delete(ix.channels, groupID)
			departures = append(departures, Departure{GroupID: groupID})
			continue
		}
		departures = append(departures, Departure{
			GroupID:   groupID,
			Remaining: ch.sendersExcept(userID),
		})
	}
	return departures
}
