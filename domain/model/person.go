package model

import (
	"fmt"
	"strings"
	"time"
)

// Question codes stored in Person.LastQuery so a free-text reply can be
// correlated with the question the bot last asked. Block-based questions
// carry their context in the block ID instead and never set LastQuery.
const (
	QueryAddIntro    = "add_intro"
	QueryUpdateIntro = "update_intro"
)

type Person struct {
	ID       string `gorm:"primary_key;type:varchar(36)"`
	UserID   string `gorm:"type:varchar(11);unique_index"` // Slack user ID
	UserName string `gorm:"type:varchar(32)"`
	FullName string `gorm:"type:varchar(128)"`
	// CasualName is how you'd say "Hey {casual_name}, nice to meet you!".
	// Usually the given name, but stored separately so it can be edited.
	CasualName string `gorm:"type:varchar(64)"`
	Intro      string `gorm:"type:text"`
	// no schema default here: gorm skips false on insert when the column
	// has one, so the creation sites set this explicitly
	CanBeExcluded bool
	LastQuery     string `gorm:"type:varchar(16)"`
	Joined        time.Time
}

// FirstName returns the first part of a full name. If the person only has
// one name on Slack this returns the full name. This heuristic does not
// hold everywhere (e.g. surname-first locales), same caveat as the
// profile field it is derived from.
func FirstName(fullName string) string {
	parts := strings.Fields(strings.TrimSpace(fullName))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func (p *Person) HasIntro() bool {
	return p.Intro != ""
}

func (p *Person) String() string {
	return fmt.Sprintf("%s (%s)", p.FullName, p.UserName)
}
