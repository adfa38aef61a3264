package model

import (
	"fmt"
	"time"
)

// Round is a time interval for a Pool in which specific people are paired
// together in a Match to meet each other.
type Round struct {
	ID        string `gorm:"primary_key;type:varchar(36)"`
	PoolID    string `gorm:"type:varchar(36);index"`
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// DefaultEndDate returns the end date for a round starting on the given
// day. Rounds typically start on a Monday and end on a Friday.
func DefaultEndDate(start time.Time) time.Time {
	return start.AddDate(0, 0, 4)
}

func (r *Round) String() string {
	const dateFormat = "Monday, Jan 2, 2006"
	return fmt.Sprintf("%s – %s", r.StartDate.Format(dateFormat), r.EndDate.Format(dateFormat))
}
