package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MemberSet is the set of account ids that applied the one-time engagement to a Work.
// It serializes as a sorted JSON array.
type MemberSet map[string]struct{}

// NewMemberSet builds a set from ids, discarding duplicates.
func NewMemberSet(ids ...string) MemberSet {
	s := make(MemberSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member.
func (s MemberSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was newly added.
func (s MemberSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of members.
func (s MemberSet) Len() int {
	return len(s)
}

// Members returns the ids in ascending order.
func (s MemberSet) Members() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s MemberSet) Clone() MemberSet {
	out := make(MemberSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s MemberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

// UnmarshalJSON decodes an array of ids. Duplicate entries are rejected.
func (s *MemberSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(MemberSet, len(ids))
	for _, id := range ids {
		if !set.Add(id) {
			return fmt.Errorf("duplicate member %q", id)
		}
	}
	*s = set
	return nil
}

// EncodeMemberSet renders the stored text form of s.
func EncodeMemberSet(s MemberSet) (string, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMemberSet parses the stored text form. Empty text is an empty set.
func DecodeMemberSet(text string) (MemberSet, error) {
	if text == "" {
		return MemberSet{}, nil
	}
	var s MemberSet
	if err := s.UnmarshalJSON([]byte(text)); err != nil {
		return nil, fmt.Errorf("decode member set: %w", err)
	}
	return s, nil
}
