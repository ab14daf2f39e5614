// Package character holds the player profile shape shared by the store and
// session packages.
package character

// Profile is the player's identity block (spec §3 Player.profile).
type Profile struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender,omitempty"`
}

// NewProfile creates a profile with the given identity fields.
func NewProfile(name string, age int, gender string) Profile {
	return Profile{Name: name, Age: age, Gender: gender}
}
