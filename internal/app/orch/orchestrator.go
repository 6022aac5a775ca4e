// Package orch is the signaling protocol handler. It validates inbound call
// events against room and peer state, drives the media engine through the app
// layer and is the only place outbound events are emitted from.
package orch

import (
	"github.com/dkeye/Orbit/internal/app"
	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/protocol"
	"github.com/rs/zerolog/log"
)

type Options struct {
	AllowAnonymous    bool
	RequireMembership bool
	EnforceDirection  bool

	MaxIncomingBitrate     int
	InitialOutgoingBitrate int
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Pool     *app.MediaPool
	Limiter  *app.JoinRateLimiter
	Opts     Options
}

func New(registry *app.Registry, rooms *app.RoomManager, pool *app.MediaPool, limiter *app.JoinRateLimiter, opts Options) *Orchestrator {
	return &Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Pool:     pool,
		Limiter:  limiter,
		Opts:     opts,
	}
}

func (o *Orchestrator) emit(conn domain.ConnID, event string, v any) {
	frame, err := protocol.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode event")
		return
	}
	if err := o.Registry.SendTo(conn, core.Frame(frame)); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).Str("event", event).Msg("emit failed")
	}
}

func (o *Orchestrator) broadcast(group string, except domain.ConnID, event string, v any) {
	frame, err := protocol.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode event")
		return
	}
	o.Registry.Broadcast(group, except, core.Frame(frame))
}

// EmitError reports a failed fire-and-forget event to its sender.
func (o *Orchestrator) EmitError(conn domain.ConnID, err error) {
	o.emit(conn, protocol.EventCallError, protocol.CallError{Message: domain.PublicMessage(err)})
}

// OnConnect registers an authenticated user, joins the chat groups for
// presence and announces the user when this is their first connection.
// Anonymous connections stay bound but join nothing.
func (o *Orchestrator) OnConnect(conn domain.ConnID, user *domain.User, chats []string) {
	if user == nil {
		log.Info().Str("module", "orch").Str("conn", string(conn)).Msg("anonymous connection")
		return
	}
	_, first := o.Registry.Register(conn, user)
	o.Registry.PresenceJoinGroups(conn, chats)
	if !first {
		return
	}
	for _, chat := range o.Registry.Chats(conn) {
		o.broadcast(app.ChatGroup(chat), conn, protocol.EventPresence, protocol.Presence{UserID: user.ID, Online: true})
	}
}

// OnDisconnect tears down whatever the connection held. Running it twice for
// the same connection is harmless.
func (o *Orchestrator) OnDisconnect(conn domain.ConnID) {
	if peer, _ := o.Rooms.RemoveByConn(conn); peer != nil {
		o.Registry.Leave(conn, app.CallGroup(peer.RoomID))
		o.broadcast(app.CallGroup(peer.RoomID), conn, protocol.EventPeerLeftCall, protocol.PeerLeftCall{PeerID: peer.ID})
		log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(peer.RoomID)).
			Str("peer", string(peer.ID)).Msg("peer torn down on disconnect")
	}
	o.Limiter.Forget(conn)

	info, ok := o.Registry.Unbind(conn)
	if !ok || info.User == nil || !info.Last {
		return
	}
	for _, chat := range info.Chats {
		o.broadcast(app.ChatGroup(chat), conn, protocol.EventPresence, protocol.Presence{UserID: info.User.ID, Online: false})
	}
}

func (o *Orchestrator) WhoAmI(conn domain.ConnID) protocol.WhoAmI {
	resp := protocol.WhoAmI{ConnID: conn}
	if u, ok := o.Registry.UserOf(conn); ok {
		resp.UserID = u.ID
	}
	if p, ok := o.Rooms.PeerByConn(conn); ok {
		resp.RoomID = p.RoomID
		resp.PeerID = p.ID
	}
	return resp
}
