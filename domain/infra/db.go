package infra

import (
	"os"
	"path"
	"sort"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

type DataBase struct {
	db *gorm.DB
}

func NewDataBase(dbpath string) (*DataBase, error) {
	if dbpath == "" {
		dbpath = "./db/slack_meetups.db"
	}
	if !path.IsAbs(dbpath) {
		dbpath = path.Join(os.Getenv("PWD"), dbpath)
	}
	db, err := gorm.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	db.AutoMigrate(&model.Person{})
	db.AutoMigrate(&model.Pool{})
	db.AutoMigrate(&model.PoolMembership{})
	db.AutoMigrate(&model.Round{})
	db.AutoMigrate(&model.Match{})
	return &DataBase{db: db}, nil
}

func (d *DataBase) GetPerson(userID string) (*model.Person, error) {
	var person model.Person
	err := d.db.Where("user_id = ?", userID).First(&person).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &person, err
}

func (d *DataBase) GetPersonByID(id string) (*model.Person, error) {
	var person model.Person
	err := d.db.Where("id = ?", id).First(&person).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &person, err
}

func (d *DataBase) SavePerson(person *model.Person) error {
	if person.Joined.IsZero() {
		person.Joined = timeNow()
	}
	// the UUID is assigned here, so gorm can't tell new records apart by a
	// blank primary key
	if person.ID == "" {
		person.ID = uuid.NewString()
		return d.db.Create(person).Error
	}
	return d.db.Save(person).Error
}

func (d *DataBase) GetPool(id string) (*model.Pool, error) {
	var pool model.Pool
	err := d.db.Where("id = ?", id).First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &pool, err
}

func (d *DataBase) GetPoolByChannelID(channelID string) (*model.Pool, error) {
	var pool model.Pool
	err := d.db.Where("channel_id = ?", channelID).First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &pool, err
}

func (d *DataBase) GetPoolByChannelName(channelName string) (*model.Pool, error) {
	var pool model.Pool
	err := d.db.Where("channel_name = ?", channelName).First(&pool).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &pool, err
}

func (d *DataBase) SavePool(pool *model.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.NewString()
		return d.db.Create(pool).Error
	}
	return d.db.Save(pool).Error
}

func (d *DataBase) GetMembership(personID, poolID string) (*model.PoolMembership, error) {
	var membership model.PoolMembership
	err := d.db.Where("person_id = ? AND pool_id = ?", personID, poolID).First(&membership).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &membership, err
}

func (d *DataBase) SaveMembership(membership *model.PoolMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
		return d.db.Create(membership).Error
	}
	return d.db.Save(membership).Error
}

func (d *DataBase) DeleteMembership(personID, poolID string) error {
	return d.db.Where("person_id = ? AND pool_id = ?", personID, poolID).
		Delete(&model.PoolMembership{}).Error
}

func (d *DataBase) PoolMembers(poolID string) ([]model.Person, error) {
	var people []model.Person
	err := d.db.Joins("JOIN pool_memberships ON pool_memberships.person_id = people.id").
		Where("pool_memberships.pool_id = ?", poolID).
		Order("people.joined asc").
		Find(&people).Error
	return people, err
}

func (d *DataBase) AvailablePeople(poolID string) ([]model.Person, error) {
	var people []model.Person
	err := d.db.Joins("JOIN pool_memberships ON pool_memberships.person_id = people.id").
		Where("pool_memberships.pool_id = ? AND pool_memberships.available = ?", poolID, true).
		Order("people.joined asc").
		Find(&people).Error
	return people, err
}

func (d *DataBase) SetPersonAvailability(personID string, available bool) error {
	return d.db.Model(&model.PoolMembership{}).
		Where("person_id = ?", personID).
		Update("available", available).Error
}

func (d *DataBase) SaveRound(round *model.Round) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
		return d.db.Create(round).Error
	}
	return d.db.Save(round).Error
}

func (d *DataBase) GetRound(id string) (*model.Round, error) {
	var round model.Round
	err := d.db.Where("id = ?", id).First(&round).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &round, err
}

func (d *DataBase) LatestRound(poolID string) (*model.Round, error) {
	var round model.Round
	err := d.db.Where("pool_id = ?", poolID).Order("start_date desc").First(&round).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &round, err
}

func (d *DataBase) RoundsForPool(poolID string) ([]model.Round, error) {
	var rounds []model.Round
	err := d.db.Where("pool_id = ?", poolID).Order("start_date desc").Find(&rounds).Error
	return rounds, err
}

func (d *DataBase) SaveMatch(match *model.Match) error {
	if match.ID == "" {
		match.ID = uuid.NewString()
		return d.db.Create(match).Error
	}
	return d.db.Save(match).Error
}

func (d *DataBase) GetMatch(id string) (*model.Match, error) {
	var match model.Match
	err := d.db.Where("id = ?", id).First(&match).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &match, err
}

func (d *DataBase) MatchesForPool(poolID string) ([]model.Match, error) {
	var matches []model.Match
	err := d.db.Joins("JOIN rounds ON rounds.id = matches.round_id").
		Where("rounds.pool_id = ?", poolID).
		Find(&matches).Error
	return matches, err
}

func (d *DataBase) LatestMatchForPerson(personID, poolID string) (*model.Match, error) {
	matches, err := d.MatchesForPool(poolID)
	if err != nil {
		return nil, err
	}
	var own []model.Match
	for _, m := range matches {
		if m.Includes(personID) {
			own = append(own, m)
		}
	}
	if len(own) == 0 {
		return nil, nil
	}
	sort.Slice(own, func(i, j int) bool {
		return own[i].CreatedAt.After(own[j].CreatedAt)
	})
	return &own[0], nil
}

func (d *DataBase) CountMatchesBetween(person1ID, person2ID string) (int, error) {
	var count int
	err := d.db.Model(&model.Match{}).
		Where("(person_1_id = ? AND person_2_id = ?) OR (person_1_id = ? AND person_2_id = ?)",
			person1ID, person2ID, person2ID, person1ID).
		Count(&count).Error
	return count, err
}

func (d *DataBase) MatchForUser(userID, matchID string) (*model.Match, error) {
	person, err := d.GetPerson(userID)
	if err != nil || person == nil {
		return nil, err
	}
	match, err := d.GetMatch(matchID)
	if err != nil || match == nil {
		return nil, err
	}
	// a person can be either side of a match; reject matches they were not
	// part of so a user can't change someone else's feedback
	if !match.Includes(person.ID) {
		return nil, nil
	}
	return match, nil
}
