package store

import (
	"github.com/Gopher0727/ChatSync/internal/model"
	"github.com/Gopher0727/ChatSync/internal/payload"
)

// PreloadCache is the transaction-scoped batch dedup cache. Batch imports
// (channel lists, message pages) repeat the same user or channel hundreds of
// times; warming the cache resolves every embedded natural key with one
// pass per entity kind, and upserts then hit the cache instead of issuing a
// point lookup per repeat. The cache never outlives its transaction: it is
// built inside an Update closure and dropped with it, on success and
// failure alike.
type PreloadCache struct {
	channels map[string]*model.Channel
	messages map[string]*model.Message
	users    map[string]*model.User
	members  map[string]*model.Member
	reads    map[string]*model.ChannelRead
}

// NewPreloadCache returns an empty cache.
func NewPreloadCache() *PreloadCache {
	return &PreloadCache{
		channels: map[string]*model.Channel{},
		messages: map[string]*model.Message{},
		users:    map[string]*model.User{},
		members:  map[string]*model.Member{},
		reads:    map[string]*model.ChannelRead{},
	}
}

// keySets accumulates the natural keys embedded in a batch payload, one set
// per entity kind.
type keySets struct {
	channels map[string]struct{}
	messages map[string]struct{}
	users    map[string]struct{}
}

func newKeySets() *keySets {
	return &keySets{
		channels: map[string]struct{}{},
		messages: map[string]struct{}{},
		users:    map[string]struct{}{},
	}
}

func (ks *keySets) user(u *payload.User) {
	if u != nil && u.ID != "" {
		ks.users[u.ID] = struct{}{}
	}
}

func (ks *keySets) message(m *payload.Message) {
	if m == nil || m.ID == "" {
		return
	}
	ks.messages[m.ID] = struct{}{}
	ks.user(m.User)
	ks.user(m.PinnedBy)
	for _, u := range m.MentionedUsers {
		ks.user(u)
	}
	for _, r := range m.LatestReactions {
		ks.user(r.User)
	}
	for _, r := range m.OwnReactions {
		ks.user(r.User)
	}
	if m.QuotedMessage != nil {
		ks.message(m.QuotedMessage)
	}
}

func (ks *keySets) channel(c *payload.Channel) {
	if c == nil || c.CID == "" {
		return
	}
	ks.channels[c.CID] = struct{}{}
	ks.user(c.CreatedBy)
	for _, m := range c.Members {
		ks.user(m.User)
	}
}

func (ks *keySets) channelDetail(d *payload.ChannelDetail) {
	if d == nil {
		return
	}
	ks.channel(d.Channel)
	for _, m := range d.Messages {
		ks.message(m)
	}
	for _, m := range d.PinnedMessages {
		ks.message(m)
	}
	for _, mb := range d.Members {
		ks.user(mb.User)
	}
	for _, r := range d.Reads {
		ks.user(r.User)
	}
	for _, w := range d.Watchers {
		ks.user(w)
	}
}

// WarmChannelList bulk-resolves every entity the list payload mentions.
func (c *PreloadCache) WarmChannelList(tx *WriteTx, p *payload.ChannelList) {
	ks := newKeySets()
	for _, d := range p.Channels {
		ks.channelDetail(d)
	}
	c.resolve(tx, ks)
}

// WarmChannelDetail bulk-resolves every entity one channel response mentions.
func (c *PreloadCache) WarmChannelDetail(tx *WriteTx, p *payload.ChannelDetail) {
	ks := newKeySets()
	ks.channelDetail(p)
	c.resolve(tx, ks)
}

// WarmMessages bulk-resolves the entities of a message page.
func (c *PreloadCache) WarmMessages(tx *WriteTx, msgs []*payload.Message) {
	ks := newKeySets()
	for _, m := range msgs {
		ks.message(m)
	}
	c.resolve(tx, ks)
}

func (c *PreloadCache) resolve(tx *WriteTx, ks *keySets) {
	for id := range ks.users {
		if _, ok := c.users[id]; ok {
			continue
		}
		if u := tx.User(id); u != nil {
			c.users[id] = u
		}
	}
	for cid := range ks.channels {
		if _, ok := c.channels[cid]; ok {
			continue
		}
		if ch := tx.Channel(cid); ch != nil {
			c.channels[cid] = ch
		}
	}
	for id := range ks.messages {
		if _, ok := c.messages[id]; ok {
			continue
		}
		if m := tx.Message(id); m != nil {
			c.messages[id] = m
		}
	}
}

// User returns the cached entity for id, falling back to the transaction.
func (c *PreloadCache) User(tx *WriteTx, id string) *model.User {
	if u, ok := c.users[id]; ok {
		return u
	}
	u := tx.User(id)
	if u != nil {
		c.users[id] = u
	}
	return u
}

// UserOrCreate resolves or creates through the cache.
func (c *PreloadCache) UserOrCreate(tx *WriteTx, id string) *model.User {
	if u, ok := c.users[id]; ok {
		return u
	}
	u := tx.UserOrCreate(id)
	c.users[id] = u
	return u
}

func (c *PreloadCache) Channel(tx *WriteTx, cid string) *model.Channel {
	if ch, ok := c.channels[cid]; ok {
		return ch
	}
	ch := tx.Channel(cid)
	if ch != nil {
		c.channels[cid] = ch
	}
	return ch
}

func (c *PreloadCache) ChannelOrCreate(tx *WriteTx, cid string) *model.Channel {
	if ch, ok := c.channels[cid]; ok {
		return ch
	}
	ch := tx.ChannelOrCreate(cid)
	c.channels[cid] = ch
	return ch
}

func (c *PreloadCache) Message(tx *WriteTx, id string) *model.Message {
	if m, ok := c.messages[id]; ok {
		return m
	}
	m := tx.Message(id)
	if m != nil {
		c.messages[id] = m
	}
	return m
}

func (c *PreloadCache) MessageOrCreate(tx *WriteTx, id string) *model.Message {
	if m, ok := c.messages[id]; ok {
		return m
	}
	m := tx.MessageOrCreate(id)
	c.messages[id] = m
	return m
}

func (c *PreloadCache) MemberOrCreate(tx *WriteTx, cid, userID string) *model.Member {
	key := model.MemberKey(cid, userID)
	if m, ok := c.members[key]; ok {
		return m
	}
	m := tx.MemberOrCreate(cid, userID)
	c.members[key] = m
	return m
}

func (c *PreloadCache) ChannelReadOrCreate(tx *WriteTx, cid, userID string) *model.ChannelRead {
	key := model.ReadKey(cid, userID)
	if r, ok := c.reads[key]; ok {
		return r
	}
	r := tx.ChannelReadOrCreate(cid, userID)
	c.reads[key] = r
	return r
}
