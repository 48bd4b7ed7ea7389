package lobby

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameLifecycle(t *testing.T) {
	l := newTestLobby()
	host := addTestUser(t, l, "host")
	watcher := addTestUser(t, l, "watcher")
	host.reset()
	watcher.reset()

	// Step one: reserve the name. Only the host hears about it.
	require.NoError(t, l.HostGame("host", "mygame", "secret"))
	hostLines := host.lines()
	require.Len(t, hostLines, 1)
	assert.Contains(t, hostLines[0], `/plays "534ba248-a87c-4ce9-8bee-bc376aae6134" "mygame" "secret" "0xcb" "`)
	assert.Empty(t, watcher.lines())
	assert.Equal(t, Stats{PlayersOnline: 2, ChannelsTotal: 1, GamesTotal: 1}, l.Stats())

	host.reset()
	sessionID := uuid.New()

	// Step two: echo the session id back, which opens the game for all to
	// see and moves the host out of their channel.
	require.NoError(t, l.HostGame("host", "mygame", sessionID.String()))
	assert.Contains(t, watcher.lines(), `/$play "mygame" "0" "0" "0" "`+sessionID.String()+`" "0"`+"\x00")
	assert.Contains(t, watcher.lines(), `/&user "host" "$mygame"`+"\x00")
	assert.Equal(t, uint32(1), l.Stats().GamesOpen)

	watcher.reset()

	// Step three: the match starts and drops off the list.
	require.NoError(t, l.HostGame("host", "mygame", sessionID.String()))
	assert.Equal(t, []string{`/&play "mygame"` + "\x00"}, watcher.lines())
	assert.Equal(t, uint32(0), l.Stats().GamesOpen)
	assert.Equal(t, uint32(1), l.Stats().GamesTotal)
}

func TestHostGameRejections(t *testing.T) {
	l := newTestLobby()
	host := addTestUser(t, l, "host")
	rival := addTestUser(t, l, "rival")
	require.NoError(t, l.HostGame("host", "mygame", "secret"))
	host.reset()
	rival.reset()

	t.Run("name taken by someone else", func(t *testing.T) {
		require.NoError(t, l.HostGame("rival", "mygame", "whatever"))
		assert.Equal(t, []string{`/error "Game already exists."` + "\x00"}, rival.lines())
	})

	t.Run("second step without a session id", func(t *testing.T) {
		require.NoError(t, l.HostGame("host", "mygame", "not-a-uuid"))
		assert.Equal(t, []string{`/error "Game already exists."` + "\x00"}, host.lines())
	})

	t.Run("invalid game name", func(t *testing.T) {
		host.reset()
		require.NoError(t, l.HostGame("host", "bad!name", "pw"))
		assert.Equal(t, []string{`/error "Invalid game name"` + "\x00"}, host.lines())
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.Equal(t, ErrUnknownUser, l.HostGame("nobody", "g", "pw"))
	})
}

func TestJoinGame(t *testing.T) {
	l := newTestLobby()
	addTestUser(t, l, "host")
	player := addTestUser(t, l, "player")
	sessionID := uuid.New()
	require.NoError(t, l.HostGame("host", "mygame", "secret"))
	require.NoError(t, l.HostGame("host", "mygame", sessionID.String()))
	player.reset()

	t.Run("wrong password", func(t *testing.T) {
		require.NoError(t, l.JoinGame("player", "mygame", "wrong"))
		assert.Equal(t, []string{`/error "Invalid password"` + "\x00"}, player.lines())
	})

	player.reset()

	t.Run("missing game", func(t *testing.T) {
		require.NoError(t, l.JoinGame("player", "nosuch", "secret"))
		assert.Equal(t, []string{`/error "Game does not exist"` + "\x00"}, player.lines())
	})

	player.reset()

	t.Run("password match hands out connection details", func(t *testing.T) {
		require.NoError(t, l.JoinGame("player", "mygame", "secret"))
		lines := player.lines()
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `/playc "534ba248-a87c-4ce9-8bee-bc376aae6134" "mygame" "secret" "0x0100000a" "`+sessionID.String()+`" "10.0.0.1"`)
	})

	player.reset()

	t.Run("session id match takes a seat", func(t *testing.T) {
		require.NoError(t, l.JoinGame("player", "mygame", sessionID.String()))
		// No confirmation for the seat itself; leaving General empty prunes
		// the channel, which everyone hears about.
		assert.Contains(t, player.lines(), `/&channel "General"`+"\x00")
	})
}

func TestJoinGameBySessionID(t *testing.T) {
	l := newTestLobby()
	host := addTestUser(t, l, "host")
	player := addTestUser(t, l, "player")
	sessionID := uuid.New()
	require.NoError(t, l.HostGame("host", "mygame", "secret"))
	require.NoError(t, l.HostGame("host", "mygame", sessionID.String()))
	host.reset()
	player.reset()

	require.NoError(t, l.JoinGame("player", "mygame", sessionID.String()))

	// The host, already seated, sees the player arrive.
	assert.Contains(t, host.lines(), `/$user "player" "0" "#General"`+"\x00")
}

func TestGamePrunedWhenEmpty(t *testing.T) {
	l := newTestLobby()
	watcher := addTestUser(t, l, "watcher")
	addTestUser(t, l, "host")
	sessionID := uuid.New()
	require.NoError(t, l.HostGame("host", "mygame", "secret"))
	require.NoError(t, l.HostGame("host", "mygame", sessionID.String()))
	watcher.reset()

	l.RemoveUser("host")

	assert.Contains(t, watcher.lines(), `/&play "mygame"`+"\x00")
	assert.Equal(t, uint32(0), l.Stats().GamesTotal)
}

func TestExpireRequestedGames(t *testing.T) {
	l := New(Config{RequestedGameTTL: 30 * time.Second}, zerolog.Nop())
	addTestUser(t, l, "host")

	base := time.Now()
	l.now = func() time.Time { return base }
	require.NoError(t, l.HostGame("host", "stale", "pw"))

	l.now = func() time.Time { return base.Add(10 * time.Second) }
	assert.Equal(t, 0, l.ExpireRequestedGames())

	l.now = func() time.Time { return base.Add(31 * time.Second) }
	assert.Equal(t, 1, l.ExpireRequestedGames())
	assert.Equal(t, uint32(0), l.Stats().GamesTotal)

	// An opened game never expires.
	require.NoError(t, l.HostGame("host", "live", "pw"))
	require.NoError(t, l.HostGame("host", "live", uuid.NewString()))
	l.now = func() time.Time { return base.Add(5 * time.Minute) }
	assert.Equal(t, 0, l.ExpireRequestedGames())
}
