package domain

// User is a registered account.
type User struct {
	Username     string
	Email        string
	Household    string
	HouseholdKey string
	PasswordHash string
	CreatedAt    string
}

// Identity is the authenticated caller as carried by a bearer token.
type Identity struct {
	Username     string
	Email        string
	Household    string
	HouseholdKey string
}

func (u User) Identity() Identity {
	return Identity{
		Username:     u.Username,
		Email:        u.Email,
		Household:    u.Household,
		HouseholdKey: u.HouseholdKey,
	}
}
