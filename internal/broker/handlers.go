package broker

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"

	"github.com/questgate/authbroker/internal/constants"
	"github.com/questgate/authbroker/internal/directory"
	"github.com/questgate/authbroker/internal/keys"
	"github.com/questgate/authbroker/internal/model"
	"github.com/questgate/authbroker/internal/protocol"
	"github.com/questgate/authbroker/internal/store"
)

// Handler holds every collaborator the packet handlers call through:
// the relational player store, the rotating token store, the in-memory
// server directory, and the connection registry.
type Handler struct {
	Players   store.Players
	Keys      *keys.Store
	Directory *directory.Directory
	Registry  *Registry
}

// HandleClientPacket dispatches one decoded frame from a player connection.
func (h *Handler) HandleClientPacket(ctx context.Context, c *Connection, body []byte) error {
	buf := protocol.NewBuffer(len(body))
	buf.WriteSlice(body)

	id, err := buf.ReadUint8()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	switch id {
	case ClientOnlineCheck:
		return nil
	case ClientRegister:
		return h.handleRegister(ctx, c, buf)
	case ClientLogin:
		return h.handleLogin(ctx, c, buf)
	case ClientPasswordReset:
		return h.handlePasswordReset(ctx, c, buf)
	case ClientRequestServers:
		return h.handleRequestServers(ctx, c, buf)
	default:
		return rejectErr(int(id), "unknown client packet id")
	}
}

// HandleGameServerPacket dispatches one decoded frame from a game-server
// connection.
func (h *Handler) HandleGameServerPacket(ctx context.Context, c *Connection, body []byte) error {
	buf := protocol.NewBuffer(len(body))
	buf.WriteSlice(body)

	id, err := buf.ReadUint8()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	switch id {
	case GameServerOnlineCheck:
		return nil
	case GameServerVerify:
		return h.handleVerification(ctx, c, buf)
	case GameServerUpdateInfo:
		return h.handleUpdateServerInfo(ctx, c, buf)
	case GameServerUpdateCount:
		return h.handleUpdateServerCount(ctx, c, buf)
	default:
		return rejectErr(int(id), "unknown game server packet id")
	}
}

func (h *Handler) handleRegister(ctx context.Context, c *Connection, buf *protocol.Buffer) error {
	username, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	password, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	email, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	spriteID, err := buf.ReadUint8()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appMajor, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appMinor, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appRevision, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	desiredServerName, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	if VersionGate(int(appMajor), int(appMinor), int(appRevision)) {
		err := rejectErr(0, "client version is out of date")
		h.sendAlert(c, err.Message)
		c.MarkCloseAfterFlush()
		return err
	}
	if err := ValidateUsername(username); err != nil {
		h.sendAlert(c, err.Error())
		c.MarkCloseAfterFlush()
		return err
	}
	if err := ValidatePassword(password); err != nil {
		h.sendAlert(c, err.Error())
		c.MarkCloseAfterFlush()
		return err
	}
	if err := ValidateEmail(email); err != nil {
		h.sendAlert(c, "Email must be an actual email.")
		c.MarkCloseAfterFlush()
		return err
	}
	if int(spriteID) >= constants.MaxSpriteID {
		err := rejectErr(6, "invalid sprite id")
		h.sendAlert(c, err.Message)
		c.MarkCloseAfterFlush()
		return err
	}

	hash := store.HashPassword(password)
	player, err := h.Players.Create(ctx, model.Player{
		Username: username,
		Email:    email,
		Password: hash,
		SpriteID: int16(spriteID),
		Access:   model.AccessNone,
	})
	if err != nil {
		wrapped := newErr(KindRegisterFail, err)
		h.sendAlert(c, "registration failed")
		c.MarkCloseAfterFlush()
		return wrapped
	}

	code, err := generateReconnectCode()
	if err != nil {
		return newErr(KindUnknown, err)
	}
	if err := h.Players.UpdateReconnectCode(ctx, player.UID, code); err != nil {
		slog.Warn("failed to persist reconnect code", "uid", player.UID, "error", err)
	}
	token, err := h.IssueToken(desiredServerName, player.UID)
	if err != nil {
		return newErr(KindUnknown, err)
	}
	if err := h.Players.AppendLog(ctx, model.LogEntry{
		ServerID: desiredServerName,
		UserID:   player.UID,
		LogType:  model.LogLogin,
		Message:  "account registered",
	}); err != nil {
		slog.Warn("failed to append register audit entry", "uid", player.UID, "error", err)
	}

	h.sendLogin(c, token, code)
	slog.Info("player registered", "username", username, "uid", player.UID)
	return nil
}

func (h *Handler) handleLogin(ctx context.Context, c *Connection, buf *protocol.Buffer) error {
	email, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	password, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appMajor, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appMinor, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	appRevision, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	reconnectCode, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	desiredServerName, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	// Never reveal whether the email or the password was the failing
	// factor: every credential-shaped rejection below shares one message.
	const credentialAlert = "Incorrect username or password."

	if VersionGate(int(appMajor), int(appMinor), int(appRevision)) {
		err := rejectErr(0, "client version is out of date")
		h.sendAlert(c, err.Message)
		c.MarkCloseAfterFlush()
		return err
	}
	if len(email) >= constants.MaxUsernameLength {
		err := rejectErr(7, "email too long")
		h.sendAlert(c, err.Message)
		c.MarkCloseAfterFlush()
		return err
	}
	if len(password) >= constants.MaxPasswordLength {
		err := rejectErr(8, "password too long")
		h.sendAlert(c, err.Message)
		c.MarkCloseAfterFlush()
		return err
	}

	player, err := h.Players.FindByEmail(ctx, email)
	if err != nil {
		wrapped := newErr(KindUserNotFound, err)
		h.sendAlert(c, credentialAlert)
		c.MarkCloseAfterFlush()
		return wrapped
	}

	if !store.VerifyPassword(password, player.Password) {
		wrapped := newErr(KindIncorrectPassword, nil)
		h.sendAlert(c, credentialAlert)
		c.MarkCloseAfterFlush()
		return wrapped
	}

	if _, already := h.Registry.ClientByUsername(player.Username); already {
		wrapped := newErr(KindMultiLogin, nil)
		h.sendAlert(c, credentialAlert)
		c.MarkCloseAfterFlush()
		return wrapped
	}

	// The stored row believes the player is still connected elsewhere:
	// only a matching reconnect code authorizes booting that session.
	if player.CurrentServer != "" {
		if reconnectCode == "" || reconnectCode != player.ReconnectCode {
			wrapped := rejectErr(9, "Could not Verify Relogin Code")
			h.sendAlert(c, wrapped.Message)
			c.MarkCloseAfterFlush()
			return wrapped
		}
		if _, stillListed := h.Directory.ByName(player.CurrentServer); stillListed {
			if serverConn, ok := h.Registry.FindServerByName(player.CurrentServer); ok {
				kill := protocol.NewPacket(ServerToServerKillClient)
				kill.WriteInt64(player.UID)
				serverConn.Enqueue(kill.Finish())
			}
		}
	}

	if _, already := h.Registry.ClientByUsername(player.Username); already {
		wrapped := newErr(KindMultiLogin, nil)
		h.sendAlert(c, credentialAlert)
		c.MarkCloseAfterFlush()
		return wrapped
	}

	c.mu.Lock()
	c.UID = player.UID
	c.Username = player.Username
	c.mu.Unlock()

	code, err := generateReconnectCode()
	if err != nil {
		return newErr(KindUnknown, err)
	}
	if err := h.Players.UpdateReconnectCode(ctx, player.UID, code); err != nil {
		slog.Warn("failed to persist reconnect code", "uid", player.UID, "error", err)
	}
	if err := h.Players.UpdateCurrentServer(ctx, player.UID, desiredServerName); err != nil {
		slog.Warn("failed to persist current server", "uid", player.UID, "error", err)
	}
	token, err := h.IssueToken(desiredServerName, player.UID)
	if err != nil {
		return newErr(KindUnknown, err)
	}
	if err := h.Players.AppendLog(ctx, model.LogEntry{
		ServerID: desiredServerName,
		UserID:   player.UID,
		LogType:  model.LogLogin,
		Message:  "login ok",
	}); err != nil {
		slog.Warn("failed to append login audit entry", "uid", player.UID, "error", err)
	}

	h.sendLogin(c, token, code)
	slog.Info("player logged in", "username", player.Username, "uid", player.UID, "server", desiredServerName)
	return nil
}

// handlePasswordReset is a deliberate no-op: the wire operation exists so
// clients that send it do not get disconnected as malformed, but the
// broker does not yet implement out-of-band reset delivery.
func (h *Handler) handlePasswordReset(_ context.Context, c *Connection, _ *protocol.Buffer) error {
	h.sendAlert(c, "password reset is not available")
	return nil
}

func (h *Handler) handleRequestServers(_ context.Context, c *Connection, _ *protocol.Buffer) error {
	all := h.Directory.All()

	for offset := 0; offset < len(all) || offset == 0; offset += constants.ServerListPageSize {
		end := offset + constants.ServerListPageSize
		if end > len(all) {
			end = len(all)
		}
		page := all[offset:end]

		p := protocol.NewPacketWithCount(ServerToClientServerList, uint64(len(page)))
		for _, e := range page {
			p.WriteString(e.Name)
			p.WriteString(e.IP)
			p.WriteUint16(e.Port)
			p.WriteUint64(e.PlayersOn)
			p.WriteUint64(e.MaxPlayers)
		}
		c.Enqueue(p.Finish())

		if end >= len(all) {
			break
		}
	}
	return nil
}

// handleVerification checks a player-presented token against the game
// server's own directory name. Verification trusts the name the game
// server connection registered under; the broker does not separately
// confirm the TCP peer address matches, matching the upstream behavior.
func (h *Handler) handleVerification(_ context.Context, c *Connection, buf *protocol.Buffer) error {
	token, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	claim, err := h.Keys.Decode(token)
	if err != nil {
		p := protocol.NewPacket(ServerToServerVerify)
		p.WriteBool(false)
		c.Enqueue(p.Finish())
		slog.Debug("token verification failed", "id", c.ID, "error", err)
		return nil
	}

	c.mu.Lock()
	serverName := c.ServerName
	c.mu.Unlock()

	valid := claim.ServerName == serverName
	p := protocol.NewPacket(ServerToServerVerify)
	p.WriteBool(valid)
	p.WriteInt64(claim.UID)
	c.Enqueue(p.Finish())
	return nil
}

func (h *Handler) handleUpdateServerInfo(_ context.Context, c *Connection, buf *protocol.Buffer) error {
	name, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	ip, err := buf.ReadString()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	port, err := buf.ReadUint16()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	playersOn, err := buf.ReadUint64()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	maxPlayers, err := buf.ReadUint64()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	c.mu.Lock()
	c.ServerName = name
	c.mu.Unlock()

	h.Directory.Upsert(directory.Entry{
		Identifier: c.ID,
		Name:       name,
		IP:         ip,
		Port:       port,
		PlayersOn:  playersOn,
		MaxPlayers: maxPlayers,
	})
	slog.Info("game server registered", "name", name, "ip", ip, "port", port)
	return nil
}

func (h *Handler) handleUpdateServerCount(_ context.Context, c *Connection, buf *protocol.Buffer) error {
	playersOn, err := buf.ReadUint64()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}
	maxPlayers, err := buf.ReadUint64()
	if err != nil {
		return newErr(KindInvalidPacket, err)
	}

	c.mu.Lock()
	name := c.ServerName
	c.mu.Unlock()

	if !h.Directory.UpdateCounts(name, playersOn, maxPlayers) {
		return newErr(KindMapNotFound, nil)
	}
	return nil
}

func (h *Handler) sendAlert(c *Connection, message string) {
	p := protocol.NewPacket(ServerToClientAlertMsg)
	p.WriteString(message)
	c.Enqueue(p.Finish())
}

// sendLogin replies with the signed token and fresh reconnect code that
// authorize a client to carry its session to a game server, the success
// path for both Register and Login.
func (h *Handler) sendLogin(c *Connection, token, reconnectCode string) {
	p := protocol.NewPacket(ServerToClientLogin)
	p.WriteString(token)
	p.WriteString(reconnectCode)
	c.Enqueue(p.Finish())
}

// IssueToken mints a fresh verification token for uid authorized to join
// serverName.
func (h *Handler) IssueToken(serverName string, uid int64) (string, error) {
	return h.Keys.Encode(keys.UserClaim{ServerName: serverName, UID: uid})
}

// generateReconnectCode draws a fresh reconnect code from the project
// alphabet using a cryptographically secure source.
func generateReconnectCode() (string, error) {
	alphabet := constants.ReconnectCodeAlphabet
	out := make([]byte, constants.ReconnectCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
