package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ResolutionStatus uint64

const (
	StatusOpen              ResolutionStatus = 0
	StatusClosed            ResolutionStatus = 1
	StatusDecryptionPending ResolutionStatus = 2
	StatusResolved          ResolutionStatus = 3
)

func (s ResolutionStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusDecryptionPending:
		return "decryption_pending"
	case StatusResolved:
		return "resolved"
	}
	return "unknown"
}

// Next reports whether to is the single forward step after s. Staying put is not a transition.
func (s ResolutionStatus) Next(to ResolutionStatus) bool {
	return s < StatusResolved && to == s+1
}

// Resolution is the stored record. Tallies are ciphertext handles and must never leave the
// node except through View.
type Resolution struct {
	Id             uint64           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	Status         ResolutionStatus `json:"status"`
	YesTally       common.Hash      `json:"yes_tally"`
	NoTally        common.Hash      `json:"no_tally"`
	Creator        string           `json:"creator"`
	RequiredQuorum uint64           `json:"required_quorum"`
	FinalYes       uint64           `json:"final_yes"`
	FinalNo        uint64           `json:"final_no"`
	Passed         bool             `json:"passed"`
	RequestId      string           `json:"request_id"`
	Deadline       time.Time        `json:"deadline"`
}

type ResolutionView struct {
	Id             uint64           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	StartTime      time.Time        `json:"startTime"`
	EndTime        time.Time        `json:"endTime"`
	Status         ResolutionStatus `json:"status"`
	StatusName     string           `json:"statusName"`
	Creator        string           `json:"creator"`
	RequiredQuorum uint64           `json:"requiredQuorum"`
	FinalYes       *uint64          `json:"finalYes,omitempty"`
	FinalNo        *uint64          `json:"finalNo,omitempty"`
	Passed         *bool            `json:"passed,omitempty"`
}

// View returns the public projection. Results are attached only once resolved.
func (r *Resolution) View() ResolutionView {
	v := ResolutionView{
		Id:             r.Id,
		Title:          r.Title,
		Description:    r.Description,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Status:         r.Status,
		StatusName:     r.Status.String(),
		Creator:        r.Creator,
		RequiredQuorum: r.RequiredQuorum,
	}
	if r.Status == StatusResolved {
		yes, no, passed := r.FinalYes, r.FinalNo, r.Passed
		v.FinalYes = &yes
		v.FinalNo = &no
		v.Passed = &passed
	}
	return v
}

type MemberView struct {
	Active bool   `json:"active"`
	Weight uint64 `json:"weight"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// DecryptionTarget is the outstanding decryption of a resolution. Handles are set only while
// the resolution is DecryptionPending; a gateway reveals nothing else.
type DecryptionTarget struct {
	Resolution uint64           `json:"resolution"`
	Status     ResolutionStatus `json:"status"`
	RequestId  string           `json:"requestId"`
	Handles    []common.Hash    `json:"handles,omitempty"`
}

func (r *Resolution) DecryptionTarget() DecryptionTarget {
	t := DecryptionTarget{
		Resolution: r.Id,
		Status:     r.Status,
		RequestId:  r.RequestId,
	}
	if r.Status == StatusDecryptionPending {
		t.Handles = []common.Hash{r.YesTally, r.NoTally}
	}
	return t
}
