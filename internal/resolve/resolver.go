package resolve

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/normalize"
)

const (
	placeholderPrefix = "unknown_"
	placeholderName   = "Unknown"
)

// Resolve matches one record to a client. Strategies run in a fixed order and
// the first hit wins:
//  1. each client reference candidate as a document id
//  2. each candidate as a secondary id
//  3. the normalized client name
//
// A record no strategy matches gets a synthetic placeholder; that is a
// recorded outcome, not an error.
func Resolve(rec model.RawInvestmentRecord, idx *ClientIndex) model.ResolutionResult {
	return resolve(rec, idx, nil)
}

func resolve(rec model.RawInvestmentRecord, idx *ClientIndex, issued map[string]struct{}) model.ResolutionResult {
	for _, cand := range rec.ClientRefCandidates {
		cand = strings.TrimSpace(cand)
		if cand == "" {
			continue
		}
		if c, ok := idx.ByID(cand); ok {
			return model.ResolutionResult{Client: c, Method: model.MethodDocumentID, MatchedOn: cand}
		}
	}

	for _, cand := range rec.ClientRefCandidates {
		key := normalize.ID(cand)
		if key == "" {
			continue
		}
		if c, ok := idx.BySecondaryID(key); ok {
			return model.ResolutionResult{Client: c, Method: model.MethodSecondaryID, MatchedOn: key}
		}
	}

	if name := normalize.Key(rec.ClientNameRaw); name != "" {
		if c, ok := idx.ByName(name); ok {
			return model.ResolutionResult{Client: c, Method: model.MethodNameMatch, MatchedOn: name}
		}
	}

	return model.ResolutionResult{Client: placeholder(rec, idx, issued), Method: model.MethodUnresolved}
}

// Placeholder builds the synthetic client for an unresolved record. Its id is
// derived from the record id and never collides with an indexed client.
func Placeholder(rec model.RawInvestmentRecord, idx *ClientIndex) model.ClientRecord {
	return placeholder(rec, idx, nil)
}

// placeholder also avoids every id in issued and records the one it picks.
func placeholder(rec model.RawInvestmentRecord, idx *ClientIndex, issued map[string]struct{}) model.ClientRecord {
	id := placeholderPrefix + rec.ID
	for {
		_, indexed := idx.byID[id]
		_, used := issued[id]
		if !indexed && !used {
			break
		}
		id += "_"
	}
	if issued != nil {
		issued[id] = struct{}{}
	}

	name := strings.TrimSpace(rec.ClientNameRaw)
	if name == "" {
		name = placeholderName
	}

	return model.ClientRecord{
		ID:          id,
		DisplayName: name,
		Synthetic:   true,
	}
}

// ResolveAll resolves every record against idx. results[i] belongs to
// records[i]. Placeholder ids are unique across the whole call.
func ResolveAll(records []model.RawInvestmentRecord, idx *ClientIndex) ([]model.ResolutionResult, model.ResolutionStats) {
	results := make([]model.ResolutionResult, len(records))
	var stats model.ResolutionStats
	issued := make(map[string]struct{})

	for i, rec := range records {
		results[i] = resolve(rec, idx, issued)
		stats.Add(results[i].Method)
	}

	zap.L().Info("resolve: records resolved",
		zap.Int("records", len(records)),
		zap.Int("document_id", stats.DocumentID),
		zap.Int("secondary_id", stats.SecondaryID),
		zap.Int("name_match", stats.NameMatch),
		zap.Int("unresolved", stats.Unresolved),
	)

	return results, stats
}
