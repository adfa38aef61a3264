package model

// Pool is a group of people in a Slack channel who are interested in
// meeting each other.
type Pool struct {
	ID          string `gorm:"primary_key;type:varchar(36)"`
	Name        string `gorm:"type:varchar(64);unique_index"`
	ChannelID   string `gorm:"type:varchar(11);unique_index"`
	ChannelName string `gorm:"type:varchar(80)"`
	Timezone    string `gorm:"type:varchar(30);default:'UTC'"`
}

func (p *Pool) String() string {
	return p.Name
}

// PoolMembership joins a Person to a Pool, including their availability
// for the active round. A nil Available means unknown.
type PoolMembership struct {
	ID        string `gorm:"primary_key;type:varchar(36)"`
	PersonID  string `gorm:"type:varchar(36);index"`
	PoolID    string `gorm:"type:varchar(36);index"`
	Available *bool
}
