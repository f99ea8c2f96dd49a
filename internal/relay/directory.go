package relay

import "sort"

// Directory maps a user identity to its current connection. At most one
// connection per user: registering a new one displaces the old mapping.
//
// Not safe for concurrent use on its own; the Hub's lock owns it.
type Directory struct {
	conns map[string]Sender
}

func NewDirectory() *Directory {
	return &Directory{conns: make(map[string]Sender)}
}

// Register binds userID to conn. If the user already had a different
// connection, that handle is returned so the caller can close it instead
// of leaving it dangling with a stale mapping.
func (d *Directory) Register(userID string, conn Sender) (prev Sender, replaced bool) {
	prev, ok := d.conns[userID]
	d.conns[userID] = conn
	if !ok || prev == conn {
		return nil, false
	}
	return prev, true
}

// Lookup returns the connection currently bound to userID.
func (d *Directory) Lookup(userID string) (Sender, bool) {
	conn, ok := d.conns[userID]
	return conn, ok
}

// Unregister removes the mapping for userID, but only when it still points
// at conn. A connection displaced by a newer one for the same user must
// not delete its successor's mapping on teardown.
func (d *Directory) Unregister(userID string, conn Sender) bool {
	cur, ok := d.conns[userID]
	if !ok || cur != conn {
		return false
	}
	delete(d.conns, userID)
	return true
}

// Online returns the sorted list of user identities with a registered
// connection.
func (d *Directory) Online() []string {
	users := make([]string, 0, len(d.conns))
	for id := range d.conns {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Conns returns every registered connection handle.
func (d *Directory) Conns() []Sender {
	conns := make([]Sender, 0, len(d.conns))
	for _, c := range d.conns {
		conns = append(conns, c)
	}
	return conns
}

// ConnsExcept returns every registered connection handle except the given one.
func (d *Directory) ConnsExcept(except Sender) []Sender {
	conns := make([]Sender, 0, len(d.conns))
	for _, c := range d.conns {
		if c == except {
			continue
		}
		conns = append(conns, c)
	}
	return conns
}
