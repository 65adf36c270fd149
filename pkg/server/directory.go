package server

import (
	"sort"
	"strings"
	"sync"
)

// Directory is the shared registry of live nicknames and channel
// memberships. Nickname uniqueness is case-insensitive; all compound
// operations (check-then-insert, remove-then-prune) run under one lock so
// they appear atomic to every connection worker. Failures are reported as
// booleans, never errors.
type Directory struct {
	mu sync.RWMutex

	// clients and nicks are keyed by the lowercased nickname; nicks keeps
	// the display form the user registered.
	clients map[string]*Client
	nicks   map[string]string

	// channels maps channel name to the set of lowercased member nicks.
	// A channel exists iff it has at least one member.
	channels map[string]map[string]bool
}

// NewDirectory creates an empty directory. Each server owns exactly one and
// hands it to every connection at construction time.
func NewDirectory() *Directory {
	return &Directory{
		clients:  make(map[string]*Client),
		nicks:    make(map[string]string),
		channels: make(map[string]map[string]bool),
	}
}

// RegisterNickname binds name to c iff no case-insensitive binding exists.
// The check and the insert are one atomic step.
func (d *Directory) RegisterNickname(name string, c *Client) bool {
	key := strings.ToLower(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.clients[key]; taken {
		return false
	}
	d.clients[key] = c
	d.nicks[key] = name
	return true
}

// UnregisterNickname removes the binding; idempotent.
func (d *Directory) UnregisterNickname(name string) {
	key := strings.ToLower(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.clients, key)
	delete(d.nicks, key)
}

// RenameNickname atomically transfers the binding from oldName to newName.
// With preserveChannels the member sets are rewritten in place; otherwise
// the old nickname is parted from every channel and the returned function
// delivers the departure notices (call it after RenameNickname returns).
func (d *Directory) RenameNickname(oldName, newName string, c *Client, preserveChannels bool) (ok bool, notify func()) {
	oldKey := strings.ToLower(oldName)
	newKey := strings.ToLower(newName)

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, taken := d.clients[newKey]; taken && existing != c {
		return false, nil
	}

	delete(d.clients, oldKey)
	delete(d.nicks, oldKey)
	d.clients[newKey] = c
	d.nicks[newKey] = newName

	var notices []func()
	for name, members := range d.channels {
		if !members[oldKey] {
			continue
		}
		delete(members, oldKey)
		if preserveChannels {
			members[newKey] = true
			continue
		}
		if len(members) == 0 {
			delete(d.channels, name)
			continue
		}
		recipients := d.snapshotLocked(members, "")
		channel := name
		notices = append(notices, func() {
			for _, member := range recipients {
				member.Send("%s %s %s\n", EvtPart, channel, oldName)
			}
		})
	}

	return true, func() {
		for _, fn := range notices {
			fn()
		}
	}
}

// IsNicknameTaken reports whether name is bound, ignoring case.
func (d *Directory) IsNicknameTaken(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, taken := d.clients[strings.ToLower(name)]
	return taken
}

// LookupConnection resolves a nickname to its connection.
func (d *Directory) LookupConnection(name string) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clients[strings.ToLower(name)]
	return c, ok
}

// JoinChannel adds name to channel, creating the channel on first join.
// Idempotent.
func (d *Directory) JoinChannel(channel, name string) {
	key := strings.ToLower(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.channels[channel]
	if !ok {
		members = make(map[string]bool)
		d.channels[channel] = members
	}
	members[key] = true
}

// PartChannel removes name from channel and prunes the channel once empty.
func (d *Directory) PartChannel(channel, name string) {
	key := strings.ToLower(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.channels[channel]
	if !ok {
		return
	}
	delete(members, key)
	if len(members) == 0 {
		delete(d.channels, channel)
	}
}

// IsMember reports channel membership.
func (d *Directory) IsMember(channel, name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members, ok := d.channels[channel]
	return ok && members[strings.ToLower(name)]
}

// Broadcast delivers message to every current member of channel except
// excludeName. The member set is snapshotted before any write so concurrent
// joins and parts neither crash the iteration nor receive partial delivery.
func (d *Directory) Broadcast(channel, message, excludeName string) {
	d.mu.RLock()
	members, ok := d.channels[channel]
	var recipients []*Client
	if ok {
		recipients = d.snapshotLocked(members, strings.ToLower(excludeName))
	}
	d.mu.RUnlock()

	for _, c := range recipients {
		c.Send("%s", message)
	}
}

// snapshotLocked resolves a member set to connections; callers must hold the
// directory lock.
func (d *Directory) snapshotLocked(members map[string]bool, excludeKey string) []*Client {
	recipients := make([]*Client, 0, len(members))
	for key := range members {
		if key == excludeKey {
			continue
		}
		if c, ok := d.clients[key]; ok {
			recipients = append(recipients, c)
		}
	}
	return recipients
}

// RemoveFromAllChannels parts name from every channel it belongs to and
// sends a departure notice to each channel's remaining members. Channel
// state is updated atomically first; notices go out after the lock drops.
func (d *Directory) RemoveFromAllChannels(name string) {
	key := strings.ToLower(name)

	type departure struct {
		channel    string
		recipients []*Client
	}

	d.mu.Lock()
	var departures []departure
	for channel, members := range d.channels {
		if !members[key] {
			continue
		}
		delete(members, key)
		if len(members) == 0 {
			delete(d.channels, channel)
			continue
		}
		departures = append(departures, departure{channel, d.snapshotLocked(members, "")})
	}
	d.mu.Unlock()

	for _, dep := range departures {
		for _, c := range dep.recipients {
			c.Send("%s %s %s\n", EvtPart, dep.channel, name)
		}
	}
}

// ListChannels returns all channel names, sorted.
func (d *Directory) ListChannels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListMembers returns the display nicknames of a channel's members, sorted.
// ok is false if the channel does not exist.
func (d *Directory) ListMembers(channel string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members, ok := d.channels[channel]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(members))
	for key := range members {
		names = append(names, d.nicks[key])
	}
	sort.Strings(names)
	return names, true
}

// ListAllNicknames returns every registered display nickname, sorted.
func (d *Directory) ListAllNicknames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.nicks))
	for _, name := range d.nicks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BroadcastServerWide delivers message to every registered connection except
// excludeName, used for disconnect notices.
func (d *Directory) BroadcastServerWide(message, excludeName string) {
	excludeKey := strings.ToLower(excludeName)

	d.mu.RLock()
	recipients := make([]*Client, 0, len(d.clients))
	for key, c := range d.clients {
		if key == excludeKey {
			continue
		}
		recipients = append(recipients, c)
	}
	d.mu.RUnlock()

	for _, c := range recipients {
		c.Send("%s", message)
	}
}
