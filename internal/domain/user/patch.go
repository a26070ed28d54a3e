package user

// Patch holds the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Email       *string
	Age         *int
	Street      *string
	City        *string
	Coordinates *Coordinates
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Age == nil &&
		p.Street == nil && p.City == nil && p.Coordinates == nil
}

// touchesAddress reports whether any nested address field is set.
func (p Patch) touchesAddress() bool {
	return p.Street != nil || p.City != nil || p.Coordinates != nil
}

// Apply merges the patch into u in place.
func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Age != nil {
		age := *p.Age
		u.Age = &age
	}
	if !p.touchesAddress() {
		return
	}
	if u.Address == nil {
		u.Address = &Address{}
	}
	if p.Street != nil {
		u.Address.Street = *p.Street
	}
	if p.City != nil {
		u.Address.City = *p.City
	}
	if p.Coordinates != nil {
		c := *p.Coordinates
		u.Address.Coordinates = &c
	}
}
