package model

import "time"

// AccessLevel is a player's authorization tier, persisted as the
// user_access Postgres enum.
type AccessLevel string

const (
	AccessNone    AccessLevel = "None"
	AccessMonitor AccessLevel = "Monitor"
	AccessAdmin   AccessLevel = "Admin"
)

// Player is a broker-owned account record. The broker reads and writes
// Username, Email, Password, CurrentServer, ReconnectCode, SpriteID, and
// Access; the remaining fields are gameplay state the broker writes once
// at registration and never interprets again.
type Player struct {
	UID           int64
	Username      string
	Email         string
	Password      string // PHC-formatted Argon2id hash
	CurrentServer string // empty when not on any server
	ReconnectCode string
	SpriteID      int16
	Access        AccessLevel
	CreatedOn     time.Time

	// Gameplay defaults, written once at creation.
	Level      int32
	LevelExp   int64
	ResetCount int32
	PK         int32
	Spawn      Location
	Pos        Location
	Vital      int32
	VitalMax   int32
	Data       []byte
}

// LogType enumerates the audit-trail event categories persisted to the
// logs table.
type LogType string

const (
	LogLogin   LogType = "Login"
	LogLogout  LogType = "Logout"
	LogItem    LogType = "Item"
	LogWarning LogType = "Warning"
	LogError   LogType = "Error"
)

// LogEntry is one row of the audit trail: not used for authorization
// decisions, only for after-the-fact inspection.
type LogEntry struct {
	ServerID  string
	UserID    int64
	LogType   LogType
	Message   string
	IPAddress string
}
