package broker

import (
	"context"
	"net"
	"testing"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/questgate/authbroker/internal/directory"
	"github.com/questgate/authbroker/internal/keys"
	"github.com/questgate/authbroker/internal/model"
	"github.com/questgate/authbroker/internal/protocol"
	"github.com/questgate/authbroker/internal/store"
	"github.com/stretchr/testify/require"
)

type fakePlayers struct {
	byUsername map[string]model.Player
	logs       []model.LogEntry
	nextUID    int64
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{byUsername: make(map[string]model.Player), nextUID: 1}
}

func (f *fakePlayers) FindByUsername(_ context.Context, username string) (model.Player, error) {
	p, ok := f.byUsername[username]
	if !ok {
		return model.Player{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakePlayers) FindByEmail(_ context.Context, email string) (model.Player, error) {
	for _, p := range f.byUsername {
		if p.Email == email {
			return p, nil
		}
	}
	return model.Player{}, store.ErrNotFound
}

func (f *fakePlayers) Create(_ context.Context, p model.Player) (model.Player, error) {
	if _, exists := f.byUsername[p.Username]; exists {
		return model.Player{}, store.ErrAlreadyExists
	}
	p.UID = f.nextUID
	f.nextUID++
	f.byUsername[p.Username] = p
	return p, nil
}

func (f *fakePlayers) UpdateCurrentServer(_ context.Context, uid int64, server string) error {
	for username, p := range f.byUsername {
		if p.UID == uid {
			p.CurrentServer = server
			f.byUsername[username] = p
			return nil
		}
	}
	return nil
}

func (f *fakePlayers) UpdateReconnectCode(_ context.Context, uid int64, code string) error {
	for username, p := range f.byUsername {
		if p.UID == uid {
			p.ReconnectCode = code
			f.byUsername[username] = p
			return nil
		}
	}
	return nil
}

func (f *fakePlayers) AppendLog(_ context.Context, entry model.LogEntry) error {
	f.logs = append(f.logs, entry)
	return nil
}

func newTestHandler() (*Handler, *fakePlayers) {
	fp := newFakePlayers()
	ks, err := keys.NewStore()
	if err != nil {
		panic(err)
	}
	h := &Handler{
		Players:   fp,
		Keys:      ks,
		Directory: directory.New(),
		Registry:  NewRegistry(),
	}
	return h, fp
}

func newTestConnection(kind ConnKind) *Connection {
	serverConn, _ := net.Pipe()
	return NewConnection(2, kind, serverConn)
}

func registerBody(t *testing.T, username, password, email string, sprite uint8, desiredServerName string) []byte {
	t.Helper()
	p := protocol.NewPacket(ClientRegister)
	p.WriteString(username)
	p.WriteString(password)
	p.WriteString(email)
	p.WriteUint8(sprite)
	p.WriteUint16(constants.AppMajor)
	p.WriteUint16(constants.AppMinor)
	p.WriteUint16(constants.AppRevision)
	p.WriteString(desiredServerName)
	return p.Body()
}

func TestHandleRegisterHappyPath(t *testing.T) {
	h, fp := newTestHandler()
	c := newTestConnection(KindClient)

	body := registerBody(t, "newplayer", "s3cret-pw", "new@example.com", 1, "alpha")
	err := h.HandleClientPacket(context.Background(), c, body)
	require.NoError(t, err)

	p, ok := fp.byUsername["newplayer"]
	require.True(t, ok)
	require.NotEmpty(t, p.ReconnectCode)

	frames := c.DrainUpTo(10)
	require.Len(t, frames, 1)
}

func TestHandleRegisterBadEmailRejected(t *testing.T) {
	h, _ := newTestHandler()
	c := newTestConnection(KindClient)

	body := registerBody(t, "newplayer", "s3cret-pw", "not-an-email", 1, "alpha")
	err := h.HandleClientPacket(context.Background(), c, body)
	require.Error(t, err)

	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindPacketReject, bErr.Kind)
	require.True(t, c.closePending())
}

func loginBody(email, password, reconnectCode, desiredServerName string) []byte {
	p := protocol.NewPacket(ClientLogin)
	p.WriteString(email)
	p.WriteString(password)
	p.WriteUint16(constants.AppMajor)
	p.WriteUint16(constants.AppMinor)
	p.WriteUint16(constants.AppRevision)
	p.WriteString(reconnectCode)
	p.WriteString(desiredServerName)
	return p.Body()
}

func TestHandleLoginMultiLoginRejected(t *testing.T) {
	h, fp := newTestHandler()
	_, err := fp.Create(context.Background(), model.Player{
		Username: "alice",
		Email:    "alice@example.com",
		Password: store.HashPassword("hunter2-ok"),
	})
	require.NoError(t, err)

	firstConn := newTestConnection(KindClient)
	body := func() []byte {
		return loginBody("alice@example.com", "hunter2-ok", "", "alpha")
	}

	require.NoError(t, h.HandleClientPacket(context.Background(), firstConn, body()))
	h.Registry.AddClient(firstConn)

	secondConn := newTestConnection(KindClient)
	secondConn.ID = 3
	err = h.HandleClientPacket(context.Background(), secondConn, body())
	require.Error(t, err)

	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindMultiLogin, bErr.Kind)
	require.True(t, secondConn.closePending())
}

func TestHandleLoginReconnectKillsPriorSession(t *testing.T) {
	h, fp := newTestHandler()
	player, err := fp.Create(context.Background(), model.Player{
		Username: "bob",
		Email:    "bob@example.com",
		Password: store.HashPassword("hunter2-ok"),
	})
	require.NoError(t, err)
	player.CurrentServer = "alpha"
	player.ReconnectCode = "OLDCODE"
	fp.byUsername["bob"] = player

	gameServerConn := newTestConnection(KindGameServer)
	gameServerConn.ServerName = "alpha"
	h.Registry.AddServer(gameServerConn)
	h.Directory.Upsert(directory.Entry{Identifier: gameServerConn.ID, Name: "alpha"})

	c := newTestConnection(KindClient)
	body := loginBody("bob@example.com", "hunter2-ok", "OLDCODE", "alpha")
	require.NoError(t, h.HandleClientPacket(context.Background(), c, body))

	killFrames := gameServerConn.DrainUpTo(10)
	require.Len(t, killFrames, 1, "prior session's server should receive a KillClient notice")

	loginFrames := c.DrainUpTo(10)
	require.Len(t, loginFrames, 1)
}

func TestHandleLoginWrongReconnectCodeRejected(t *testing.T) {
	h, fp := newTestHandler()
	player, err := fp.Create(context.Background(), model.Player{
		Username: "carol",
		Email:    "carol@example.com",
		Password: store.HashPassword("hunter2-ok"),
	})
	require.NoError(t, err)
	player.CurrentServer = "alpha"
	player.ReconnectCode = "RIGHTCODE"
	fp.byUsername["carol"] = player

	c := newTestConnection(KindClient)
	body := loginBody("carol@example.com", "hunter2-ok", "WRONGCODE", "alpha")
	err = h.HandleClientPacket(context.Background(), c, body)
	require.Error(t, err)

	var bErr *Error
	require.ErrorAs(t, err, &bErr)
	require.Equal(t, KindPacketReject, bErr.Kind)
	require.True(t, c.closePending())
}

func TestHandleRequestServersPaging(t *testing.T) {
	h, _ := newTestHandler()
	for i := 0; i < 12; i++ {
		h.Directory.Upsert(directory.Entry{
			Identifier: i + 2,
			Name:       string(rune('a' + i)),
			IP:         "10.0.0.1",
			Port:       7777,
		})
	}

	c := newTestConnection(KindClient)
	p := protocol.NewPacket(ClientRequestServers)
	require.NoError(t, h.HandleClientPacket(context.Background(), c, p.Body()))

	frames := c.DrainUpTo(100)
	require.Len(t, frames, 3) // 12 servers at 5 per page = 3 pages
}

func TestHandleVerificationPassesAfterOneRotation(t *testing.T) {
	h, _ := newTestHandler()

	token, err := h.IssueToken("alpha", 99)
	require.NoError(t, err)
	require.NoError(t, h.Keys.Rotate())

	serverConn := newTestConnection(KindGameServer)
	serverConn.ServerName = "alpha"
	h.Registry.AddServer(serverConn)

	p := protocol.NewPacket(GameServerVerify)
	p.WriteString(token)
	require.NoError(t, h.HandleGameServerPacket(context.Background(), serverConn, p.Body()))

	frames := serverConn.DrainUpTo(10)
	require.Len(t, frames, 1)

	buf := protocol.NewBuffer(len(frames[0]))
	buf.WriteSlice(frames[0][constants.FrameHeaderSize:])
	_, _ = buf.ReadUint8() // packet id
	ok, err := buf.ReadBool()
	require.NoError(t, err)
	require.True(t, ok)
}
