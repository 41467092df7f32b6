// Package batch groups fetched files into bounded containers. The bounding
// policy is an explicit configuration choice: a batch closes either after a
// fixed number of members or before a cumulative byte budget would be
// exceeded, never a silent mix of the two.
package batch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCount  = errors.New("count bound must be a positive integer")
	ErrInvalidBudget = errors.New("size budget must be a positive byte count")
)

type policyKind int

const (
	boundByCount policyKind = iota
	boundBySize
)

// Policy decides when an open batch closes. Construct with CountBound or
// SizeBound; the zero Policy is not valid.
type Policy struct {
	kind     policyKind
	maxItems int
	maxBytes int64
}

// CountBound closes a batch after exactly n members.
func CountBound(n int) (Policy, error) {
	if n <= 0 {
		return Policy{}, ErrInvalidCount
	}
	return Policy{kind: boundByCount, maxItems: n}, nil
}

// SizeBound closes a batch before a member would push its cumulative size
// past budget bytes. A single member larger than the budget still gets its
// own batch.
func SizeBound(budget int64) (Policy, error) {
	if budget <= 0 {
		return Policy{}, ErrInvalidBudget
	}
	return Policy{kind: boundBySize, maxBytes: budget}, nil
}

func (p Policy) String() string {
	switch p.kind {
	case boundBySize:
		return fmt.Sprintf("size<=%dB", p.maxBytes)
	default:
		return fmt.Sprintf("count<=%d", p.maxItems)
	}
}

// Member is one file owned by a batch.
type Member struct {
	Path  string
	Title string
	Size  int64
}

// Batch is an ordered group of members. It is mutable only through the
// Archiver that owns it; a batch returned from Add or Flush is closed and
// will not gain further members.
type Batch struct {
	members    []Member
	totalBytes int64
}

func (b *Batch) Members() []Member {
	return b.members
}

func (b *Batch) Len() int {
	return len(b.members)
}

func (b *Batch) TotalBytes() int64 {
	return b.totalBytes
}

func (b *Batch) add(m Member) {
	b.members = append(b.members, m)
	b.totalBytes += m.Size
}

// Archiver accepts a stream of members and deterministically decides how
// they group into batches under its policy.
type Archiver struct {
	policy Policy
	open   *Batch
}

func NewArchiver(policy Policy) *Archiver {
	return &Archiver{policy: policy, open: &Batch{}}
}

func (a *Archiver) Policy() Policy {
	return a.policy
}

// Pending returns how many members are waiting in the open batch.
func (a *Archiver) Pending() int {
	return a.open.Len()
}

// Add appends a member, returning a closed batch if the policy dictated
// closing one. Under a count bound the returned batch contains m as its
// final member; under a size bound the budget is checked before adding, so
// the returned batch ends at the previous member and m starts the next one.
func (a *Archiver) Add(m Member) *Batch {
	switch a.policy.kind {
	case boundBySize:
		if a.open.Len() > 0 && a.open.totalBytes+m.Size > a.policy.maxBytes {
			closed := a.open
			a.open = &Batch{}
			a.open.add(m)
			return closed
		}
		a.open.add(m)
		return nil
	default:
		a.open.add(m)
		if a.open.Len() >= a.policy.maxItems {
			closed := a.open
			a.open = &Batch{}
			return closed
		}
		return nil
	}
}

// Flush closes and returns the open batch, or nil if it has no members.
func (a *Archiver) Flush() *Batch {
	if a.open.Len() == 0 {
		return nil
	}
	closed := a.open
	a.open = &Batch{}
	return closed
}
