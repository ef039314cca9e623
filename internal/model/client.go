package model

// ClientRecord is a canonical (or near-canonical) client entity. ID is the
// authoritative store document id. Synthetic marks a run-scoped placeholder
// created when a record's client could not be resolved; placeholders are
// never written back.
type ClientRecord struct {
	ID           string   `json:"id"`
	SecondaryIDs []string `json:"secondaryIds,omitempty"`
	DisplayName  string   `json:"displayName"`
	IsActive     bool     `json:"isActive"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	CompanyName  string   `json:"companyName,omitempty"`
	Synthetic    bool     `json:"synthetic,omitempty"`
}

// ResolutionMethod names the strategy that matched a record to its client.
type ResolutionMethod string

const (
	MethodDocumentID  ResolutionMethod = "document_id"
	MethodSecondaryID ResolutionMethod = "secondary_id"
	MethodNameMatch   ResolutionMethod = "name_match"
	MethodUnresolved  ResolutionMethod = "unresolved"
)

// ResolutionResult is the resolver's answer for one record.
type ResolutionResult struct {
	Client ClientRecord     `json:"client"`
	Method ResolutionMethod `json:"method"`
	// MatchedOn is the candidate id or normalized name that produced the match.
	MatchedOn string `json:"matchedOn,omitempty"`
}

// ResolutionStats counts resolution outcomes per method.
type ResolutionStats struct {
	DocumentID  int `json:"documentId"`
	SecondaryID int `json:"secondaryId"`
	NameMatch   int `json:"nameMatch"`
	Unresolved  int `json:"unresolved"`
}

// Add records one outcome.
func (s *ResolutionStats) Add(m ResolutionMethod) {
	switch m {
	case MethodDocumentID:
		s.DocumentID++
	case MethodSecondaryID:
		s.SecondaryID++
	case MethodNameMatch:
		s.NameMatch++
	default:
		s.Unresolved++
	}
}

// Merge adds other's counts into s.
func (s *ResolutionStats) Merge(other ResolutionStats) {
	s.DocumentID += other.DocumentID
	s.SecondaryID += other.SecondaryID
	s.NameMatch += other.NameMatch
	s.Unresolved += other.Unresolved
}

// Mapped is the number of records matched to a real client.
func (s ResolutionStats) Mapped() int {
	return s.DocumentID + s.SecondaryID + s.NameMatch
}

// Total is the number of records resolved (matched or not).
func (s ResolutionStats) Total() int {
	return s.Mapped() + s.Unresolved
}

// MappingStats summarizes how many records were matched to a real client.
type MappingStats struct {
	Mapped   int     `json:"mapped"`
	Unmapped int     `json:"unmapped"`
	Ratio    float64 `json:"ratio"`
}

// Mapping converts the per-method counts into mapped/unmapped totals.
func (s ResolutionStats) Mapping() MappingStats {
	ms := MappingStats{Mapped: s.Mapped(), Unmapped: s.Unresolved}
	if total := s.Total(); total > 0 {
		ms.Ratio = float64(ms.Mapped) / float64(total)
	}
	return ms
}
