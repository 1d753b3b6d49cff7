package domain

import "strings"

// Route carries the routing hints resolved for a chat
type Route struct {
	MasterHint string `yaml:"master" json:"master"`
	RoomHint   string `yaml:"room" json:"room"`
}

// WithDefaults fills a missing room hint from the master hint (master_3 -> room3)
func (r Route) WithDefaults() Route {
	if r.RoomHint == "" && r.MasterHint != "" {
		r.RoomHint = strings.Replace(r.MasterHint, "master_", "room", 1)
	}
	return r
}
