package dto

// UserDeactivatedEvent is the identity-system event consumed when a user is
// deactivated. SuccessorID selects the reassignment policy: when set, owned
// zones move to the successor; when empty, still-active zones are
// workflow-deleted by the system actor and the user's grants are removed.
type UserDeactivatedEvent struct {
	UserID      string `json:"user_id"`
	SuccessorID string `json:"successor_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
