package auth

// Authorize gates a session principal on a role set: allow iff the
// principal's role is a member. Key-based principals always fail a role check
// and session principals always fail a permission check; the two schemes are
// never merged, so an admin token does not satisfy a key-permission gate and
// a courier key does not satisfy a role gate.
func Authorize(p *Principal, requiredRoles ...string) error {
	if p == nil {
		return ErrInsufficientRole
	}
	if p.Kind != KindStaff && p.Kind != KindCustomer {
		return ErrInsufficientRole
	}
	for _, role := range requiredRoles {
		if p.Role == role {
			return nil
		}
	}
	return ErrInsufficientRole
}

// AuthorizePermissions gates a key principal on a permission list: allow iff
// every required permission is present in the principal's set.
func AuthorizePermissions(p *Principal, required ...string) error {
	if p == nil || p.Kind != KindCourierKey {
		return ErrInsufficientPermissions
	}
	for _, perm := range required {
		if !p.HasPermission(perm) {
			return ErrInsufficientPermissions
		}
	}
	return nil
}
