// Package proto holds the relay's line protocol: the fixed strings exchanged
// with peers and the newline framing used on every connection.
package proto

import "strings"

const (
	// Welcome is sent once the nickname handshake succeeds.
	Welcome = "Entrer /aide pour avoir la liste des commandes disponibles"
	// NicknameTaken is re-sent until the peer proposes a usable nickname.
	NicknameTaken = "Pseudo déjà existant"
	// LeaveNotice replaces the termination token when it is relayed to the room.
	LeaveNotice = "** a quitté la communication **"
	// ShutdownNotice is broadcast to every session before the sentinel.
	ShutdownNotice = "LE SERVEUR S'EST MOMENTANEMENT ARRETE, DECONNEXION..."
	// Sentinel forces every client and session to disconnect.
	Sentinel = "Tout ce message est le code secret pour désactiver les clients"
	// UsageHint answers unknown commands.
	UsageHint = `Faites "/aide" pour avoir accès aux commandes disponibles et leur fonctionnement`

	// TerminationToken is the line a client sends to leave.
	TerminationToken = "/fin"
	// ReservedIdentity is used by clients interrupted before choosing a nickname.
	// Its arrival is not announced to the room.
	ReservedIdentity = "FinClient"
	// Placeholder is the nickname of a slot that has not finished its handshake.
	Placeholder = " "

	CommandIsOnline   = "/estConnecte"
	CommandHelp       = "/aide"
	CommandOnlineList = "/enLigne"
)

// Joined is the notice broadcast when a nickname is accepted.
func Joined(nickname string) string {
	return nickname + " a rejoint la communication"
}

// Relayed prefixes a room message with its author.
func Relayed(nickname, text string) string {
	return nickname + " : " + text
}

// Online is the positive /estConnecte and /enLigne answer.
func Online(nickname string) string {
	return nickname + " est en ligne"
}

// Offline is the negative /estConnecte answer.
func Offline(nickname string) string {
	return nickname + " n'est pas en ligne"
}

// IsCommand reports whether a line is addressed to the server rather than the room.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, "/")
}
