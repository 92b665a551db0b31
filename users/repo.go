package users

// ListFilter narrows and pages an admin user listing.
type ListFilter struct {
	Page   int
	Limit  int
	Search string // substring match against email and display name
	Role   Role   // empty means any
	Status Status // empty means any
}

// UserRepo defines the interface for user storage operations.
type UserRepo interface {
	Create(user *User) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)

	// List returns a page of users matching the filter plus the total
	// match count (pre-paging).
	List(filter ListFilter) ([]*User, int, error)

	// Update applies the non-nil fields of updates to the user.
	Update(id string, updates Updates) (*User, error)
}
