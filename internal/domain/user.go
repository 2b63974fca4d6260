package domain

// Role type to distinguish between user roles.
// Accounts live in the auth service; tokens only carry the role claim.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)
