package model

import "time"

// Match is a pairing between two people in a Round. The historical set of
// matches is what lets the pairing step avoid repeats.
type Match struct {
	ID        string `gorm:"primary_key;type:varchar(36)"`
	Person1ID string `gorm:"column:person_1_id;type:varchar(36);index"`
	Person2ID string `gorm:"column:person_2_id;type:varchar(36);index"`
	RoundID   string `gorm:"type:varchar(36);index"`
	// ConversationID is the Slack group DM opened between the two people.
	ConversationID string `gorm:"type:varchar(11)"`
	// Met records whether the pair actually met up. nil means unknown.
	Met       *bool
	CreatedAt time.Time
}

// Includes reports whether the person with the given ID is part of this match.
func (m *Match) Includes(personID string) bool {
	return m.Person1ID == personID || m.Person2ID == personID
}

// OtherPersonID returns the ID of the match partner of the given person.
func (m *Match) OtherPersonID(personID string) string {
	if m.Person1ID == personID {
		return m.Person2ID
	}
	return m.Person1ID
}
