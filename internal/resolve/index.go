// Package resolve maps raw investment records to canonical clients using an
// in-memory index over the client collection.
package resolve

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

// ClientIndex is built once per resolution run and is read-only afterwards,
// so it is safe for concurrent lookups.
type ClientIndex struct {
	byID        map[string]*model.ClientRecord
	bySecondary map[string]*model.ClientRecord
	byName      map[string]*model.ClientRecord
	clients     []model.ClientRecord

	// DuplicateNames maps a normalized name shared by several clients to
	// their ids in input order. Only the first id is reachable by name.
	DuplicateNames map[string][]string
	// DuplicateSecondaryIDs maps a secondary id claimed by several clients
	// to their ids in input order.
	DuplicateSecondaryIDs map[string][]string
	// DuplicateIDs lists document ids that appeared more than once.
	DuplicateIDs []string
}

// BuildIndex indexes clients by document id, every secondary id, and
// normalized display name. On any key collision the first client seen wins;
// collisions are exposed through the Duplicate* reports.
func BuildIndex(clients []model.ClientRecord) *ClientIndex {
	idx := &ClientIndex{
		byID:                  make(map[string]*model.ClientRecord, len(clients)),
		bySecondary:           make(map[string]*model.ClientRecord, len(clients)),
		byName:                make(map[string]*model.ClientRecord, len(clients)),
		clients:               make([]model.ClientRecord, 0, len(clients)),
		DuplicateNames:        make(map[string][]string),
		DuplicateSecondaryIDs: make(map[string][]string),
	}

	seen := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			idx.DuplicateIDs = append(idx.DuplicateIDs, c.ID)
			continue
		}
		seen[c.ID] = struct{}{}
		idx.clients = append(idx.clients, c)
	}

	for i := range idx.clients {
		c := &idx.clients[i]
		idx.byID[c.ID] = c

		for _, sec := range c.SecondaryIDs {
			key := normalize.ID(sec)
			if key == "" {
				continue
			}
			if first, ok := idx.bySecondary[key]; ok {
				if first.ID != c.ID {
					idx.DuplicateSecondaryIDs[key] = appendCollision(idx.DuplicateSecondaryIDs[key], first.ID, c.ID)
				}
				continue
			}
			idx.bySecondary[key] = c
		}

		if name := normalize.Key(c.DisplayName); name != "" {
			if first, ok := idx.byName[name]; ok {
				idx.DuplicateNames[name] = appendCollision(idx.DuplicateNames[name], first.ID, c.ID)
				continue
			}
			idx.byName[name] = c
		}
	}

	sort.Strings(idx.DuplicateIDs)

	zap.L().Debug("resolve: client index built",
		zap.Int("clients", len(idx.clients)),
		zap.Int("secondary_ids", len(idx.bySecondary)),
		zap.Int("names", len(idx.byName)),
		zap.Int("duplicate_names", len(idx.DuplicateNames)),
		zap.Int("duplicate_secondary_ids", len(idx.DuplicateSecondaryIDs)),
		zap.Int("duplicate_ids", len(idx.DuplicateIDs)),
	)

	return idx
}

func appendCollision(ids []string, first, next string) []string {
	if len(ids) == 0 {
		ids = append(ids, first)
	}
	return append(ids, next)
}

// Len returns the number of indexed clients.
func (idx *ClientIndex) Len() int { return len(idx.clients) }

// Clients returns the indexed clients in input order.
func (idx *ClientIndex) Clients() []model.ClientRecord { return idx.clients }

// ByID looks up a client by exact document id.
func (idx *ClientIndex) ByID(id string) (model.ClientRecord, bool) {
	if c, ok := idx.byID[id]; ok {
		return *c, true
	}
	return model.ClientRecord{}, false
}

// BySecondaryID looks up a client by a legacy identifier.
func (idx *ClientIndex) BySecondaryID(id string) (model.ClientRecord, bool) {
	if c, ok := idx.bySecondary[normalize.ID(id)]; ok {
		return *c, true
	}
	return model.ClientRecord{}, false
}

// ByName looks up a client by normalized display name.
func (idx *ClientIndex) ByName(name string) (model.ClientRecord, bool) {
	if c, ok := idx.byName[normalize.Key(name)]; ok {
		return *c, true
	}
	return model.ClientRecord{}, false
}
