package activity

// ListOptions filters a tenant's activity log. Entries are newest first.
type ListOptions struct {
	UserID string
	Type   *Type
	Screen string
	Limit  int
	Offset int
}
