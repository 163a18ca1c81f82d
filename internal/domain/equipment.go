package domain

import "time"

// Equipment is an inventoried asset incidents are raised against.
type Equipment struct {
	ID               string
	LocationID       string
	Model            string
	SerialNumber     string
	OperationalState string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Location is where equipment is installed.
type Location struct {
	ID       string
	Name     string
	Building string
	Floor    string
	Room     string
	Notes    string
}
