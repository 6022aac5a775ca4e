package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dkeye/Orbit/internal/app"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) authorizeJoin(conn domain.ConnID, room domain.RoomID) (*domain.User, error) {
	user, authed := o.Registry.UserOf(conn)
	if !authed && !o.Opts.AllowAnonymous {
		return nil, domain.ErrUnauthenticated
	}
	if o.Opts.RequireMembership && !slices.Contains(o.Registry.Chats(conn), string(room)) {
		return nil, domain.ErrForbidden
	}
	if !o.Limiter.Allow(conn) {
		return nil, domain.ErrRateLimited
	}
	return user, nil
}

// JoinCallRoom puts the connection's peer into the room. The joiner gets
// callRoomJoined, the room gets newPeerInCall and, when the room was just
// created, the chat group gets call-starting.
func (o *Orchestrator) JoinCallRoom(ctx context.Context, conn domain.ConnID, req protocol.JoinCallRoomRequest) error {
	roomID, err := domain.NewRoomID(req.RoomID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	peerID, err := domain.NewPeerID(req.PeerID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	user, err := o.authorizeJoin(conn, roomID)
	if err != nil {
		return err
	}

	if current, ok := o.Rooms.PeerByConn(conn); ok {
		if current.RoomID == roomID && current.ID == peerID {
			o.emitJoined(conn, roomID, peerID)
			return nil
		}
		o.leave(conn, current)
	}

	res, err := o.Rooms.Join(ctx, app.JoinRequest{
		RoomID:           roomID,
		PeerID:           peerID,
		ConnID:           conn,
		User:             user,
		EnforceDirection: o.Opts.EnforceDirection,
	})
	if err != nil {
		return err
	}
	group := app.CallGroup(roomID)
	if stale := res.Replaced; stale != nil {
		o.Registry.Leave(stale.ConnID, group)
		o.broadcast(group, "", protocol.EventPeerLeftCall, protocol.PeerLeftCall{PeerID: stale.ID})
	}
	o.Registry.Join(conn, group)

	o.emit(conn, protocol.EventCallRoomJoined, protocol.CallRoomJoined{
		RoomID:          roomID,
		RtpCapabilities: res.Room.Router.RtpCapabilities(),
		Peers:           res.Others,
	})
	o.broadcast(group, conn, protocol.EventNewPeerInCall, protocol.NewPeerInCall{PeerID: peerID})

	if res.Created {
		descriptor := req.Group
		if len(descriptor) == 0 || string(descriptor) == "null" {
			descriptor, _ = json.Marshal(string(roomID))
		}
		o.broadcast(app.ChatGroup(string(roomID)), conn, protocol.EventCallStarting, protocol.CallStarting{Group: descriptor})
	}
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(roomID)).
		Str("peer", string(peerID)).Bool("created", res.Created).Int("others", len(res.Others)).Msg("joined call room")
	return nil
}

func (o *Orchestrator) emitJoined(conn domain.ConnID, roomID domain.RoomID, self domain.PeerID) {
	room, ok := o.Rooms.Room(roomID)
	if !ok {
		return
	}
	others := make([]domain.PeerSnapshot, 0)
	snap, _ := o.Rooms.Snapshot(roomID)
	for _, s := range snap {
		if s.PeerID != self {
			others = append(others, s)
		}
	}
	o.emit(conn, protocol.EventCallRoomJoined, protocol.CallRoomJoined{
		RoomID:          roomID,
		RtpCapabilities: room.Router.RtpCapabilities(),
		Peers:           others,
	})
}

// LeaveCallRoom removes the connection's peer. Room and peer ids in the
// request must name the peer this connection holds.
func (o *Orchestrator) LeaveCallRoom(_ context.Context, conn domain.ConnID, req protocol.LeaveCallRoomRequest) error {
	peer, ok := o.Rooms.PeerByConn(conn)
	if !ok {
		return domain.ErrPeerNotFound
	}
	if (req.RoomID != "" && domain.RoomID(req.RoomID) != peer.RoomID) ||
		(req.PeerID != "" && domain.PeerID(req.PeerID) != peer.ID) {
		return domain.ErrPeerNotFound
	}
	o.leave(conn, peer)
	return nil
}

func (o *Orchestrator) leave(conn domain.ConnID, peer *app.Peer) {
	removed, closed := o.Rooms.RemoveByConn(conn)
	if removed == nil {
		return
	}
	peer = removed
	group := app.CallGroup(peer.RoomID)
	o.Registry.Leave(conn, group)
	o.broadcast(group, conn, protocol.EventPeerLeftCall, protocol.PeerLeftCall{PeerID: peer.ID})
	log.Info().Str("module", "orch").Str("conn", string(conn)).Str("room", string(peer.RoomID)).
		Str("peer", string(peer.ID)).Bool("room_closed", closed).Msg("left call room")
}
