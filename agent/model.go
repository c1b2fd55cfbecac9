package agent

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primaryKey" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id           uint64 `gorm:"primaryKey" json:"id"`
	Title        string `json:"title"`
	Proposer     string `json:"proposer"`
	Expires      string `json:"expires"`
	Msgs         uint64 `json:"msgs"`
	Status       uint64 `json:"status"`
	NewHeight    uint64 `json:"new_height"`
	SettleHeight uint64 `json:"settle_height"`
	SettledBy    string `json:"settled_by"`
}

type ProposalVote struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Proposal uint64 `json:"proposal"`
	Voter    string `json:"voter"`
	Vote     uint64 `json:"vote"`
	Weight   uint64 `json:"weight"`
	Height   uint64 `json:"height"`
}

// Action is a downstream message released by an executed proposal.
type Action struct {
	Id         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Proposal   uint64 `gorm:"unique_index:idx_action_slot" json:"proposal"`
	Index      uint64 `gorm:"unique_index:idx_action_slot" json:"index"`
	Target     string `json:"target"`
	Type       uint64 `json:"type"`
	Payload    string `json:"payload"`
	Height     uint64 `json:"height"`
	Forwarded  bool   `json:"forwarded"`
	ForwardErr string `json:"forward_err"`
}

type VoterRemoval struct {
	Id     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Voter  string `json:"voter"`
	Weight uint64 `json:"weight"`
	Height uint64 `json:"height"`
}
