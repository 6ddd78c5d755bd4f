package server

// Entry is a directory value: either an Identity or a *Room.
type Entry interface {
	isEntry()
}

// Identity binds a login to the one connection that presented it.
type Identity struct {
	Conn *Conn
}

// Room is a named group of connections in join order. A connection may
// appear more than once if it joined more than once.
type Room struct {
	Members []*Conn
}

func (Identity) isEntry() {}
func (*Room) isEntry()    {}

// Directory maps names to identities and rooms. Identities and rooms share one
// namespace. Names are listed in the order they were added.
//
// A Directory is owned by the hub goroutine and has no locking of its own.
type Directory struct {
	entries map[string]Entry
	names   []string
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]Entry)}
}

// Lookup returns the entry registered under name.
func (d *Directory) Lookup(name string) (Entry, bool) {
	e, ok := d.entries[name]
	return e, ok
}

// Has reports whether name is taken by an identity or a room.
func (d *Directory) Has(name string) bool {
	_, ok := d.entries[name]
	return ok
}

// Len returns the number of names in the directory.
func (d *Directory) Len() int {
	return len(d.names)
}

// AddIdentity registers name for conn. It reports false if the name is taken.
func (d *Directory) AddIdentity(name string, conn *Conn) bool {
	if name == "" || d.Has(name) {
		return false
	}
	d.add(name, Identity{Conn: conn})
	return true
}

// CreateRoom registers a room with creator as its sole member. It reports
// false if the name is taken.
func (d *Directory) CreateRoom(name string, creator *Conn) bool {
	if name == "" || d.Has(name) {
		return false
	}
	d.add(name, &Room{Members: []*Conn{creator}})
	return true
}

// Join appends conn to the room called name. It reports false when name is
// not a room.
func (d *Directory) Join(name string, conn *Conn) bool {
	room, ok := d.entries[name].(*Room)
	if !ok {
		return false
	}
	room.Members = append(room.Members, conn)
	return true
}

// Names returns every name in insertion order.
func (d *Directory) Names() []string {
	return append([]string(nil), d.names...)
}

// Identities returns the connection of every identity in name order.
func (d *Directory) Identities() []*Conn {
	conns := make([]*Conn, 0, len(d.names))
	for _, name := range d.names {
		if id, ok := d.entries[name].(Identity); ok {
			conns = append(conns, id.Conn)
		}
	}
	return conns
}

// RemoveConn deletes every identity bound to conn and strips conn from the
// member list of every room. Rooms stay registered even when they become
// empty. It returns the identity names that were removed.
func (d *Directory) RemoveConn(conn *Conn) []string {
	var removed []string
	kept := d.names[:0]

	for _, name := range d.names {
		switch e := d.entries[name].(type) {
		case Identity:
			if e.Conn == conn {
				delete(d.entries, name)
				removed = append(removed, name)
				continue
			}
		case *Room:
			e.Members = without(e.Members, conn)
		}
		kept = append(kept, name)
	}

	clear(d.names[len(kept):])
	d.names = kept
	return removed
}

func (d *Directory) add(name string, e Entry) {
	d.entries[name] = e
	d.names = append(d.names, name)
}

func without(members []*Conn, conn *Conn) []*Conn {
	out := members[:0]
	for _, m := range members {
		if m != conn {
			out = append(out, m)
		}
	}
	clear(members[len(out):])
	return out
}
