// Package lobby owns all shared state of the chat/matchmaking lobby: the
// user registry, channels and game sessions. Every mutation and every
// membership read for a broadcast happens under one mutex acquisition, and
// delivery is a non-blocking enqueue to the recipient's outbound queue, so
// the lock is never held across blocking I/O.
package lobby

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ienet/earthnet/pkg/protocol"
)

const (
	allowedNameChars     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	allowedUserChars     = allowedNameChars + ".|()[]{}"
	allowedGameNameChars = allowedNameChars + "+.| "
)

var (
	ErrUserExists  = errors.New("username already logged in")
	ErrUnknownUser = errors.New("user not in lobby")
	ErrNoLocation  = errors.New("user has no current channel")
)

// Recipient is one connected client's outbound queue. Deliver must not
// block; it reports false when the recipient is dead or its queue is full,
// in which case the connection owner is expected to tear the session down.
type Recipient interface {
	Deliver(msg []byte) bool
}

// LocationKind says what kind of place a user currently occupies.
type LocationKind int

const (
	Nowhere LocationKind = iota
	InChannel
	InGame
)

// Location is a user's current channel or game.
type Location struct {
	Kind LocationKind
	Name string
}

func (l Location) String() string {
	switch l.Kind {
	case InChannel:
		return "#" + l.Name
	case InGame:
		return "$" + l.Name
	default:
		return "[nowhere]"
	}
}

// User is one logged-in player.
type User struct {
	Name       string
	Version    uuid.UUID
	VersionIdx uint32
	IP         net.IP
	loc        Location
	out        Recipient
}

type channel struct {
	name    string
	members []*User // join order
}

// Config controls lobby policy knobs.
type Config struct {
	DefaultChannel string
	// RequestedGameTTL is how long a host may sit between requesting a
	// game and opening it before the request is swept away.
	RequestedGameTTL time.Duration
}

// Stats is a point-in-time snapshot of lobby counters for ServerWelcome and
// /syncstats.
type Stats struct {
	PlayersOnline uint32
	ChannelsTotal uint32
	GamesTotal    uint32
	GamesOpen     uint32
}

// Lobby is the single owned registry of lobby state. Channels are created
// on first join and pruned when their last member leaves; games follow the
// requested/open/started lifecycle.
type Lobby struct {
	mu       sync.Mutex
	cfg      Config
	users    map[string]*User // keyed by lower-case name
	channels map[string]*channel
	games    map[string]*game
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an empty lobby.
func New(cfg Config, log zerolog.Logger) *Lobby {
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = "General"
	}
	if cfg.RequestedGameTTL == 0 {
		cfg.RequestedGameTTL = 30 * time.Second
	}
	return &Lobby{
		cfg:      cfg,
		users:    make(map[string]*User),
		channels: make(map[string]*channel),
		games:    make(map[string]*game),
		log:      log,
		now:      time.Now,
	}
}

// DefaultChannel returns the channel new logins are placed into.
func (l *Lobby) DefaultChannel() string {
	return l.cfg.DefaultChannel
}

// ValidUserName reports whether a username is non-empty and uses only the
// character set the game client can render.
func ValidUserName(name string) bool {
	return validName(name, allowedUserChars)
}

func validName(name, allowed string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if !strings.ContainsRune(allowed, c) {
			return false
		}
	}
	return true
}

// AddUser registers a freshly authenticated user. A non-nil welcome is
// enqueued before the user becomes visible to broadcasts, so it is
// guaranteed to be the first thing the client receives.
func (l *Lobby) AddUser(name string, version uuid.UUID, versionIdx uint32, ip net.IP, out Recipient, welcome []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	if _, ok := l.users[key]; ok {
		return ErrUserExists
	}

	u := &User{Name: name, Version: version, VersionIdx: versionIdx, IP: ip, out: out}
	if welcome != nil {
		l.deliver(u, welcome)
	}
	l.users[key] = u
	l.log.Info().Str("user", name).Msg("user entered lobby")
	return nil
}

// AnnounceState sends the existing channels and open games to a user who
// just logged in. The caller follows up with JoinChannel into the default
// channel.
func (l *Lobby) AnnounceState(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(name)]
	if !ok {
		return ErrUnknownUser
	}
	for _, ch := range l.channels {
		l.deliver(u, protocol.ChannelAdded(ch.name))
	}
	for _, g := range l.games {
		if g.status == gameOpen {
			l.deliver(u, protocol.GameAdded(g.name, g.id))
		}
	}
	return nil
}

// RemoveUser drops a user on disconnect or logout, notifying their channel
// and pruning whatever they leave behind.
func (l *Lobby) RemoveUser(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	u, ok := l.users[key]
	if !ok {
		return
	}
	delete(l.users, key)
	l.leaveLocation(u, Location{})
	l.log.Info().Str("user", name).Msg("user left lobby")
}

// JoinChannel moves a user into a channel, creating it if needed. The mover
// gets a /join confirmation and the roster of members already present;
// both channels see join/leave notifications.
func (l *Lobby) JoinChannel(username, channelName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(username)]
	if !ok {
		return ErrUnknownUser
	}
	if !validName(channelName, allowedNameChars) {
		l.deliver(u, protocol.ErrorText("Invalid channel name"))
		return nil
	}

	ch := l.getOrCreateChannel(channelName)
	dest := Location{Kind: InChannel, Name: ch.name}
	if u.loc == dest {
		// Already there, nothing to announce.
		return nil
	}

	l.deliver(u, protocol.JoinedChannel(ch.name))
	for _, member := range ch.members {
		l.deliver(u, protocol.RosterUser(member.Name))
	}
	l.moveUser(u, dest)
	return nil
}

// BroadcastChat relays channel chat from a user to every member of their
// current location, the sender included, in join order.
func (l *Lobby) BroadcastChat(username, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(username)]
	if !ok {
		return ErrUnknownUser
	}
	if u.loc.Kind == Nowhere {
		// Post-login users always occupy a channel; this is an internal
		// invariant violation, not a user error.
		return ErrNoLocation
	}

	msg := protocol.ChatText(u.Name, text)
	l.sendToLocation(u.loc, msg)
	return nil
}

// PrivateMessage routes /msg to a user, a #channel or a $game. Unknown
// targets earn the sender an /error reply.
func (l *Lobby) PrivateMessage(username, target, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(username)]
	if !ok {
		return ErrUnknownUser
	}

	if strings.HasPrefix(target, "#") {
		if ch, ok := l.channels[strings.ToLower(target[1:])]; ok {
			l.deliver(u, protocol.PrivateEcho("#"+ch.name, text))
			l.sendToLocation(Location{Kind: InChannel, Name: ch.name},
				protocol.PrivateText(u.loc.String(), u.Name, "#"+ch.name, text))
			return nil
		}
	} else if strings.HasPrefix(target, "$") {
		if g, ok := l.games[strings.ToLower(target[1:])]; ok {
			l.deliver(u, protocol.PrivateEcho("$"+g.name, text))
			l.sendToLocation(Location{Kind: InGame, Name: g.name},
				protocol.PrivateText(u.loc.String(), u.Name, "$"+g.name, text))
			return nil
		}
	} else if rcpt, ok := l.users[strings.ToLower(target)]; ok {
		l.deliver(u, protocol.PrivateEcho(rcpt.Name, text))
		l.deliver(rcpt, protocol.PrivateText(u.loc.String(), u.Name, rcpt.Name, text))
		return nil
	}

	l.deliver(u, protocol.ErrorText("Unknown target: "+target))
	return nil
}

// BroadcastStats pushes a /syncstats update to everyone. playersTotal comes
// from the account store, which the lobby does not own.
func (l *Lobby) BroadcastStats(playersTotal uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.statsLocked()
	msg := protocol.SyncStats(playersTotal, st.PlayersOnline, st.ChannelsTotal, st.GamesTotal, st.GamesOpen)
	for _, u := range l.users {
		l.deliver(u, msg)
	}
}

// Stats snapshots the lobby counters.
func (l *Lobby) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statsLocked()
}

func (l *Lobby) statsLocked() Stats {
	st := Stats{
		PlayersOnline: uint32(len(l.users)),
		ChannelsTotal: uint32(len(l.channels)),
		GamesTotal:    uint32(len(l.games)),
	}
	for _, g := range l.games {
		if g.status == gameOpen {
			st.GamesOpen++
		}
	}
	return st
}

// getOrCreateChannel returns the channel, announcing creation to everyone
// when it did not exist yet. Callers hold the lock.
func (l *Lobby) getOrCreateChannel(name string) *channel {
	key := strings.ToLower(name)
	if ch, ok := l.channels[key]; ok {
		return ch
	}
	ch := &channel{name: name}
	l.channels[key] = ch
	l.log.Info().Str("channel", name).Msg("channel created")
	l.sendToAll(protocol.ChannelAdded(name))
	return ch
}

// moveUser relocates a user, announcing the join to the destination, the
// leave to the origin, and pruning an emptied origin. Callers hold the lock.
func (l *Lobby) moveUser(u *User, dest Location) {
	origin := u.loc

	// Announce arrival to the destination's existing members first, so the
	// mover's own /$user does not echo back at them.
	originLabel := ""
	if origin.Kind != Nowhere {
		originLabel = origin.String()
	}
	l.sendToLocation(dest, protocol.UserJoined(u.Name, u.VersionIdx, originLabel))

	u.loc = dest
	if dest.Kind == InChannel {
		ch := l.channels[strings.ToLower(dest.Name)]
		ch.members = append(ch.members, u)
	}

	l.leaveLocation(&User{Name: u.Name, loc: origin}, dest)
	// leaveLocation works on a copy carrying only the origin; the real
	// user already sits in the destination.
}

// leaveLocation detaches a user from their old location, announces the
// departure and prunes empties. dest is where they went (zero on
// disconnect). Callers hold the lock.
func (l *Lobby) leaveLocation(u *User, dest Location) {
	origin := u.loc
	if origin.Kind == Nowhere {
		return
	}

	destLabel := ""
	if dest.Kind != Nowhere {
		destLabel = dest.String()
	}

	switch origin.Kind {
	case InChannel:
		key := strings.ToLower(origin.Name)
		ch, ok := l.channels[key]
		if !ok {
			return
		}
		for i, member := range ch.members {
			if strings.EqualFold(member.Name, u.Name) {
				ch.members = append(ch.members[:i], ch.members[i+1:]...)
				break
			}
		}
		l.sendToLocation(origin, protocol.UserLeft(u.Name, destLabel))
		if len(ch.members) == 0 {
			delete(l.channels, key)
			l.log.Info().Str("channel", ch.name).Msg("channel removed")
			l.sendToAll(protocol.ChannelDropped(ch.name))
		}
	case InGame:
		l.sendToLocation(origin, protocol.UserLeft(u.Name, destLabel))
		l.pruneGameIfEmpty(origin.Name)
	}
}

// sendToLocation delivers to every user at a location in join order for
// channels (map order for games, which have no roster semantics). Callers
// hold the lock.
func (l *Lobby) sendToLocation(loc Location, msg []byte) {
	if loc.Kind == InChannel {
		if ch, ok := l.channels[strings.ToLower(loc.Name)]; ok {
			for _, member := range ch.members {
				l.deliver(member, msg)
			}
		}
		return
	}
	for _, u := range l.users {
		if u.loc == loc {
			l.deliver(u, msg)
		}
	}
}

func (l *Lobby) sendToAll(msg []byte) {
	for _, u := range l.users {
		l.deliver(u, msg)
	}
}

// deliver enqueues without blocking. A full or dead recipient is only
// logged here; the connection owner notices the closed queue and runs the
// normal disconnect path.
func (l *Lobby) deliver(u *User, msg []byte) {
	if u.out == nil {
		return
	}
	if !u.out.Deliver(msg) {
		l.log.Warn().Str("user", u.Name).Msg("dropping message for dead recipient")
	}
}
