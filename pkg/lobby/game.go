package lobby

import (
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ienet/earthnet/pkg/protocol"
)

// Game sessions follow a three-step lifecycle driven by the hosting client:
//
//	requested: first /plays reserved the name; the host got a fresh session
//	           id back and nobody else can see the game yet.
//	open:      second /plays echoed the session id; the game is announced
//	           and joinable.
//	started:   third /plays; the game drops off the lobby list but keeps
//	           its location for in-game chat.
type gameStatus int

const (
	gameRequested gameStatus = iota
	gameOpen
	gameStarted
)

type game struct {
	name        string
	password    string
	version     uuid.UUID
	id          uuid.UUID
	host        string
	hostIP      net.IP
	status      gameStatus
	requestedAt time.Time
}

// HostGame handles /plays. A new name reserves a requested game and returns
// the session id to the host only; repeating the command with that id opens
// the game, and repeating it again marks it started.
func (l *Lobby) HostGame(username, gameName, secret string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(username)]
	if !ok {
		return ErrUnknownUser
	}
	if !validName(gameName, allowedGameNameChars) {
		l.deliver(u, protocol.ErrorText("Invalid game name"))
		return nil
	}

	key := strings.ToLower(gameName)
	g, exists := l.games[key]
	if !exists {
		sessionID := uuid.New()
		l.games[key] = &game{
			name:        gameName,
			password:    secret,
			version:     u.Version,
			host:        u.Name,
			hostIP:      u.IP,
			status:      gameRequested,
			requestedAt: l.now(),
		}
		l.deliver(u, protocol.GameCreated(u.Version, gameName, []byte(secret), sessionID))
		l.log.Info().Str("game", gameName).Str("host", u.Name).Msg("game requested")
		return nil
	}

	sessionID, err := uuid.Parse(secret)
	if g.status == gameStarted || !strings.EqualFold(g.host, username) || err != nil {
		l.deliver(u, protocol.ErrorText("Game already exists."))
		return nil
	}

	switch g.status {
	case gameRequested:
		g.id = sessionID
		g.status = gameOpen
		l.sendToAll(protocol.GameAdded(g.name, g.id))
		l.moveUser(u, Location{Kind: InGame, Name: g.name})
		l.log.Info().Str("game", g.name).Msg("game opened")
	case gameOpen:
		g.status = gameStarted
		l.sendToAll(protocol.GameDropped(g.name))
		l.log.Info().Str("game", g.name).Msg("game started")
	}
	return nil
}

// JoinGame handles /playc. A player presenting the game's session id is an
// in-game client taking its seat; a player presenting the game password is
// handed the connection details instead.
func (l *Lobby) JoinGame(username, gameName, secret string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[strings.ToLower(username)]
	if !ok {
		return ErrUnknownUser
	}

	g, exists := l.games[strings.ToLower(gameName)]
	if !exists {
		l.deliver(u, protocol.ErrorText("Game does not exist"))
		return nil
	}

	if sessionID, err := uuid.Parse(secret); err == nil && sessionID == g.id && g.status != gameRequested {
		l.moveUser(u, Location{Kind: InGame, Name: g.name})
		return nil
	}
	if secret == g.password && g.status == gameOpen {
		l.deliver(u, protocol.GameJoin(u.Version, g.name, []byte(secret), g.hostIP, g.id))
		return nil
	}

	l.deliver(u, protocol.ErrorText("Invalid password"))
	return nil
}

// ExpireRequestedGames sweeps requested games whose host never opened them.
// They were never announced, so no notification goes out. Returns how many
// were dropped.
func (l *Lobby) ExpireRequestedGames() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.RequestedGameTTL)
	expired := 0
	for key, g := range l.games {
		if g.status == gameRequested && g.requestedAt.Before(cutoff) {
			delete(l.games, key)
			expired++
			l.log.Info().Str("game", g.name).Msg("requested game expired")
		}
	}
	return expired
}

// pruneGameIfEmpty removes a game once nobody occupies it. Open games get a
// /&play broadcast; started games already dropped off the list when they
// started. Callers hold the lock.
func (l *Lobby) pruneGameIfEmpty(name string) {
	key := strings.ToLower(name)
	g, ok := l.games[key]
	if !ok {
		return
	}
	loc := Location{Kind: InGame, Name: g.name}
	for _, u := range l.users {
		if u.loc == loc {
			return
		}
	}
	delete(l.games, key)
	if g.status == gameOpen {
		l.sendToAll(protocol.GameDropped(g.name))
	}
	l.log.Info().Str("game", g.name).Msg("game removed")
}
