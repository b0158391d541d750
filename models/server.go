package models

// Server is a community of members and channels.
type Server struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`

	Name            string `json:"name"`
	IconURL         string `json:"iconURL"`
	IconLastUpdated int64  `json:"iconLastUpdated"`

	// OwnerID always carries the raw owner identifier; Owner is resolved to
	// a live entry of Members once that member is cached.
	OwnerID string  `json:"owner"`
	Owner   *Member `json:"-"`

	// Channels and Members hold shared references into the registry-owned
	// canonical instances, keyed by ID.
	Channels map[string]*Channel `json:"-"`
	Members  map[string]*Member  `json:"-"`

	// MembersCached is true once the full member list has been fetched.
	MembersCached bool `json:"-"`
}

// Clone returns an independent snapshot of the server. The collection
// containers are copied so the clone's membership cannot be mutated through
// the original, but the entries still point at the canonical entities.
func (s *Server) Clone() *Server {
	c := *s
	c.Channels = make(map[string]*Channel, len(s.Channels))
	for id, ch := range s.Channels {
		c.Channels[id] = ch
	}
	c.Members = make(map[string]*Member, len(s.Members))
	for id, m := range s.Members {
		c.Members[id] = m
	}
	return &c
}
