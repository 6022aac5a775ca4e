package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Orbit/internal/core"
	"github.com/dkeye/Orbit/internal/domain"
	"github.com/dkeye/Orbit/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Delivery group names. Chat presence, per-user and per-call groups never collide.
func UserGroup(id domain.UserID) string { return "user:" + string(id) }
func ChatGroup(id string) string        { return "chat:" + id }
func CallGroup(id domain.RoomID) string { return "call:" + string(id) }

type connEntry struct {
	Conn   core.SignalConnection
	User   *domain.User
	Chats  []string
	Groups map[string]struct{}
	Cancel context.CancelFunc
}

// ConnInfo is what Unbind hands back for presence cleanup.
type ConnInfo struct {
	User  *domain.User
	Chats []string
	// Last is set when no other connection of the user remains.
	Last bool
}

// PublishResult reports delivery stats of a group send.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnID
}

// Registry tracks live connections, the user each one belongs to and the
// delivery groups it has joined.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.ConnID]*connEntry
	groups map[string]map[domain.ConnID]struct{}
	policy Policy
}

func NewRegistry(policy Policy) *Registry {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Registry{
		conns:  make(map[domain.ConnID]*connEntry),
		groups: make(map[string]map[domain.ConnID]struct{}),
		policy: policy,
	}
}

// Bind records a transport-level connection.
func (r *Registry) Bind(id domain.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		metrics.ConnectionsCurrent.Inc()
	}
	r.conns[id] = &connEntry{
		Conn:   conn,
		Cancel: cancel,
		Groups: make(map[string]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// Register associates a connection with a user and joins the user's delivery group.
// Calling it again overwrites the previous association. first reports whether
// the connection is now the user's only one, decided under the registry lock.
func (r *Registry) Register(id domain.ConnID, user *domain.User) (ok, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || user == nil {
		return false, false
	}
	if e.User != nil && e.User.ID != user.ID {
		r.leaveLocked(id, e, UserGroup(e.User.ID))
	}
	group := UserGroup(user.ID)
	_, already := r.groups[group][id]
	e.User = user
	r.joinLocked(id, e, group)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user.ID)).Msg("registered user")
	return true, !already && len(r.groups[group]) == 1
}

// Unregister drops the user association. Unknown or anonymous connections are a no-op.
func (r *Registry) Unregister(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.User == nil {
		return
	}
	r.leaveLocked(id, e, UserGroup(e.User.ID))
	e.User = nil
}

// PresenceJoinGroups joins the chat groups the caller says the user belongs to.
func (r *Registry) PresenceJoinGroups(id domain.ConnID, groupIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	for _, g := range groupIDs {
		if _, joined := e.Groups[ChatGroup(g)]; joined {
			continue
		}
		e.Chats = append(e.Chats, g)
		r.joinLocked(id, e, ChatGroup(g))
	}
}

// Unbind forgets the connection and leaves every group. Safe to call twice.
func (r *Registry) Unbind(id domain.ConnID) (ConnInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ConnInfo{}, false
	}
	for g := range e.Groups {
		r.leaveLocked(id, e, g)
	}
	delete(r.conns, id)
	metrics.ConnectionsCurrent.Dec()
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind connection")
	info := ConnInfo{User: e.User, Chats: e.Chats}
	if e.User != nil {
		info.Last = len(r.groups[UserGroup(e.User.ID)]) == 0
	}
	return info, true
}

func (r *Registry) Join(id domain.ConnID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		r.joinLocked(id, e, group)
	}
}

func (r *Registry) Leave(id domain.ConnID, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		r.leaveLocked(id, e, group)
	}
}

func (r *Registry) joinLocked(id domain.ConnID, e *connEntry, group string) {
	e.Groups[group] = struct{}{}
	members, ok := r.groups[group]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		r.groups[group] = members
	}
	members[id] = struct{}{}
}

func (r *Registry) leaveLocked(id domain.ConnID, e *connEntry, group string) {
	delete(e.Groups, group)
	if members, ok := r.groups[group]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
}

func (r *Registry) UserOf(id domain.ConnID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.User == nil {
		return nil, false
	}
	return e.User, true
}

// Chats returns the chat group ids the connection joined for presence.
func (r *Registry) Chats(id domain.ConnID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil
	}
	return append([]string(nil), e.Chats...)
}

func (r *Registry) InGroup(id domain.ConnID, group string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[group][id]
	return ok
}

func (r *Registry) GroupSize(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// SendTo delivers a frame to one connection.
func (r *Registry) SendTo(id domain.ConnID, f core.Frame) error {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return core.ErrConnClosed
	}
	return r.deliver(id, e, f)
}

// Broadcast delivers a frame to every member of group except the sender.
func (r *Registry) Broadcast(group string, except domain.ConnID, f core.Frame) PublishResult {
	type target struct {
		id domain.ConnID
		e  *connEntry
	}
	r.mu.RLock()
	targets := make([]target, 0, len(r.groups[group]))
	for id := range r.groups[group] {
		if id == except {
			continue
		}
		if e, ok := r.conns[id]; ok {
			targets = append(targets, target{id, e})
		}
	}
	r.mu.RUnlock()

	res := PublishResult{}
	for _, t := range targets {
		if err := r.deliver(t.id, t.e, f); err != nil {
			res.Dropped = append(res.Dropped, t.id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.registry").Str("group", group).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Registry) deliver(id domain.ConnID, e *connEntry, f core.Frame) error {
	err := e.Conn.TrySend(f)
	if err == nil || !errors.Is(err, core.ErrBackpressure) {
		return err
	}
	metrics.DroppedFramesTotal.Inc()
	switch r.policy.OnBackPressure(id) {
	case Disconnect:
		log.Warn().Str("module", "app.registry").Str("conn", string(id)).Msg("slow consumer, disconnecting")
		r.Cancel(id)
		e.Conn.Close()
	case DropFrame, NoAction:
		log.Warn().Str("module", "app.registry").Str("conn", string(id)).Msg("slow consumer, frame dropped")
	}
	return err
}

func (r *Registry) Cancel(id domain.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}
