package model

const (
	ActionUpvote = "upvote"
	ActionReport = "report"
)

// Interaction is one user action against a resource. The unique index keeps
// a voter from upvoting (or reporting) the same resource twice.
type Interaction struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	VoterEmail string `gorm:"not null;uniqueIndex:idx_interaction_once" json:"user_email"`
	ResourceID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_interaction_once;index" json:"resource_id"`
	Action     string `gorm:"not null;uniqueIndex:idx_interaction_once" json:"action_type"`
	CreatedAt  int64  `gorm:"autoCreateTime" json:"created_at"`
}
