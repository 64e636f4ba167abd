package tracking

import "time"

type Researcher struct {
	PrimaryIdentifier string `groups:"basic"`

	Name     string `groups:"basic"`
	PhotoURL string `groups:"basic"`
	IsActive bool   `groups:"basic"`

	CreationDateTime     time.Time `groups:"detailed"`
	ModificationDateTime time.Time `groups:"detailed"`
}
