package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Member struct {
	Address string `gorm:"primary_key" json:"address"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Weight  uint64 `json:"weight"`
	Active  bool   `json:"active"`
	Height  uint64 `json:"height"`
}

// Resolution mirrors the public part of a resolution. Tallies are never indexed; the final
// counts appear once the resolution is resolved.
type Resolution struct {
	Id             uint64 `gorm:"primary_key" json:"-"`
	Resolution     uint64 `gorm:"unique_index" json:"resolution"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Creator        string `json:"creator"`
	RequiredQuorum uint64 `json:"required_quorum"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	Status         uint64 `json:"status"`
	RequestId      string `json:"request_id"`
	Deadline       int64  `json:"deadline"`
	Passed         bool   `json:"passed"`
	FinalYes       uint64 `json:"final_yes"`
	FinalNo        uint64 `json:"final_no"`
	CreateHeight   uint64 `json:"create_height"`
	CloseHeight    uint64 `json:"close_height"`
	ResolveHeight  uint64 `json:"resolve_height"`
}

// VoteReceipt records that a ballot was cast, never its value.
type VoteReceipt struct {
	Id         uint64 `gorm:"primary_key;auto_increment" json:"id"`
	Resolution uint64 `gorm:"index" json:"resolution"`
	Voter      string `gorm:"index" json:"voter"`
	Height     uint64 `json:"height"`
}
