package profile

// PairingPolicy maps the seed profile's gender to the candidate gender a
// profile-seeded match searches for.
type PairingPolicy func(seed Gender) Gender

// OppositePairing pairs Male with Female. Genders outside the binary pair with themselves.
func OppositePairing(seed Gender) Gender {
	switch seed {
	case Male:
		return Female
	case Female:
		return Male
	default:
		return seed
	}
}

// SamePairing pairs every gender with itself.
func SamePairing(seed Gender) Gender { return seed }

// PairingFor selects the policy for the same_gender request flag.
func PairingFor(sameGender bool) PairingPolicy {
	if sameGender {
		return SamePairing
	}
	return OppositePairing
}
