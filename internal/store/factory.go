package store

import (
	"basegraph.app/codesight/core/db"
)

type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Connections() ConnectionStore {
	return newConnectionStore(s.q)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.q)
}

func (s *Stores) Accounts() AccountStore {
	return newAccountStore(s.q)
}
