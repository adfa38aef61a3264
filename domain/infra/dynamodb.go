package infra

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

type DynamoDB struct {
	db *dynamodb.Client

	personTable     string
	poolTable       string
	membershipTable string
	roundTable      string
	matchTable      string
}

func NewDynamoDB(tableNamePrefix string) (*DynamoDB, error) {
	if tableNamePrefix == "" {
		tableNamePrefix = "slack_meetups"
	}

	var db *dynamodb.Client
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String("http://localhost:8000")
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	d := &DynamoDB{
		db:              db,
		personTable:     tableNamePrefix + "_person",
		poolTable:       tableNamePrefix + "_pool",
		membershipTable: tableNamePrefix + "_pool_membership",
		roundTable:      tableNamePrefix + "_round",
		matchTable:      tableNamePrefix + "_match",
	}
	if os.Getenv("DYNAMO_LOCAL") != "" {
		if err := d.EnsureTables(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second
	maxWaitPolls = 30
)

func (d *DynamoDB) EnsureTables() error {
	// single hash key per table; all secondary lookups are filtered scans,
	// which is fine at chat-workspace scale
	tables := map[string]string{
		d.personTable:     "user_id",
		d.poolTable:       "id",
		d.membershipTable: "id",
		d.roundTable:      "id",
		d.matchTable:      "id",
	}

	for tableName, hashKey := range tables {
		if err := d.ensureSingleTable(tableName, hashKey); err != nil {
			return fmt.Errorf("failed to ensure table %s: %v", tableName, err)
		}
	}

	return nil
}

func (d *DynamoDB) ensureSingleTable(tableName, hashKey string) error {
	_, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		return nil
	}

	_, err = d.db.CreateTable(context.TODO(), &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %v", tableName, err)
	}

	for i := 0; i < maxWaitPolls; i++ {
		out, err := d.db.DescribeTable(context.TODO(), &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %v", tableName, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table %s creation timed out", tableName)
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.Atoi(v.Value)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}

func getTimeValue(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s := getStringValue(item, key)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// optional booleans (availability, met) are stored as N: -1 unknown, 0 no, 1 yes
func optionalBoolValue(item map[string]types.AttributeValue, key string) *bool {
	n, err := getNumberValue(item, key)
	if err != nil || n < 0 {
		return nil
	}
	v := n == 1
	return &v
}

func optionalBoolAttr(b *bool) *types.AttributeValueMemberN {
	switch {
	case b == nil:
		return &types.AttributeValueMemberN{Value: "-1"}
	case *b:
		return &types.AttributeValueMemberN{Value: "1"}
	default:
		return &types.AttributeValueMemberN{Value: "0"}
	}
}

func (d *DynamoDB) getItem(table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	result, err := d.db.GetItem(context.TODO(), &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}
	return result.Item, nil
}

func (d *DynamoDB) scan(table, filter string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := d.db.Scan(context.TODO(), &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		startKey = out.LastEvaluatedKey
		if startKey == nil {
			break
		}
	}
	return items, nil
}

func personFromItem(item map[string]types.AttributeValue) (*model.Person, error) {
	joined, err := getTimeValue(item, "joined")
	if err != nil {
		return nil, fmt.Errorf("failed to parse joined: %v", err)
	}
	canBeExcluded, err := getNumberValue(item, "can_be_excluded")
	if err != nil {
		return nil, fmt.Errorf("failed to parse can_be_excluded: %v", err)
	}
	return &model.Person{
		ID:            getStringValue(item, "id"),
		UserID:        getStringValue(item, "user_id"),
		UserName:      getStringValue(item, "user_name"),
		FullName:      getStringValue(item, "full_name"),
		CasualName:    getStringValue(item, "casual_name"),
		Intro:         getStringValue(item, "intro"),
		CanBeExcluded: canBeExcluded == 1,
		LastQuery:     getStringValue(item, "last_query"),
		Joined:        joined,
	}, nil
}

func (d *DynamoDB) GetPerson(userID string) (*model.Person, error) {
	item, err := d.getItem(d.personTable, map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	})
	if err != nil || item == nil {
		return nil, err
	}
	return personFromItem(item)
}

func (d *DynamoDB) GetPersonByID(id string) (*model.Person, error) {
	items, err := d.scan(d.personTable, "id = :id", map[string]types.AttributeValue{
		":id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return personFromItem(items[0])
}

func (d *DynamoDB) SavePerson(person *model.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	if person.Joined.IsZero() {
		person.Joined = timeNow()
	}
	canBeExcluded := 0
	if person.CanBeExcluded {
		canBeExcluded = 1
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(d.personTable),
		Item: map[string]types.AttributeValue{
			"id":              &types.AttributeValueMemberS{Value: person.ID},
			"user_id":         &types.AttributeValueMemberS{Value: person.UserID},
			"user_name":       &types.AttributeValueMemberS{Value: person.UserName},
			"full_name":       &types.AttributeValueMemberS{Value: person.FullName},
			"casual_name":     &types.AttributeValueMemberS{Value: person.CasualName},
			"intro":           &types.AttributeValueMemberS{Value: person.Intro},
			"can_be_excluded": &types.AttributeValueMemberN{Value: strconv.Itoa(canBeExcluded)},
			"last_query":      &types.AttributeValueMemberS{Value: person.LastQuery},
			"joined":          &types.AttributeValueMemberS{Value: person.Joined.Format(time.RFC3339)},
		},
	})
	return err
}

func poolFromItem(item map[string]types.AttributeValue) *model.Pool {
	return &model.Pool{
		ID:          getStringValue(item, "id"),
		Name:        getStringValue(item, "name"),
		ChannelID:   getStringValue(item, "channel_id"),
		ChannelName: getStringValue(item, "channel_name"),
		Timezone:    getStringValue(item, "timezone"),
	}
}

func (d *DynamoDB) GetPool(id string) (*model.Pool, error) {
	item, err := d.getItem(d.poolTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil || item == nil {
		return nil, err
	}
	return poolFromItem(item), nil
}

func (d *DynamoDB) getPoolBy(attr, value string) (*model.Pool, error) {
	items, err := d.scan(d.poolTable, attr+" = :v", map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberS{Value: value},
	})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return poolFromItem(items[0]), nil
}

func (d *DynamoDB) GetPoolByChannelID(channelID string) (*model.Pool, error) {
	return d.getPoolBy("channel_id", channelID)
}

func (d *DynamoDB) GetPoolByChannelName(channelName string) (*model.Pool, error) {
	return d.getPoolBy("channel_name", channelName)
}

func (d *DynamoDB) SavePool(pool *model.Pool) error {
	if pool.ID == "" {
		pool.ID = uuid.NewString()
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(d.poolTable),
		Item: map[string]types.AttributeValue{
			"id":           &types.AttributeValueMemberS{Value: pool.ID},
			"name":         &types.AttributeValueMemberS{Value: pool.Name},
			"channel_id":   &types.AttributeValueMemberS{Value: pool.ChannelID},
			"channel_name": &types.AttributeValueMemberS{Value: pool.ChannelName},
			"timezone":     &types.AttributeValueMemberS{Value: pool.Timezone},
		},
	})
	return err
}

func membershipFromItem(item map[string]types.AttributeValue) *model.PoolMembership {
	return &model.PoolMembership{
		ID:        getStringValue(item, "id"),
		PersonID:  getStringValue(item, "person_id"),
		PoolID:    getStringValue(item, "pool_id"),
		Available: optionalBoolValue(item, "available"),
	}
}

func (d *DynamoDB) GetMembership(personID, poolID string) (*model.PoolMembership, error) {
	items, err := d.scan(d.membershipTable, "person_id = :person_id AND pool_id = :pool_id",
		map[string]types.AttributeValue{
			":person_id": &types.AttributeValueMemberS{Value: personID},
			":pool_id":   &types.AttributeValueMemberS{Value: poolID},
		})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return membershipFromItem(items[0]), nil
}

func (d *DynamoDB) SaveMembership(membership *model.PoolMembership) error {
	if membership.ID == "" {
		// reuse an existing row for this person/pool so saves stay idempotent
		existing, err := d.GetMembership(membership.PersonID, membership.PoolID)
		if err != nil {
			return err
		}
		if existing != nil {
			membership.ID = existing.ID
		} else {
			membership.ID = uuid.NewString()
		}
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(d.membershipTable),
		Item: map[string]types.AttributeValue{
			"id":        &types.AttributeValueMemberS{Value: membership.ID},
			"person_id": &types.AttributeValueMemberS{Value: membership.PersonID},
			"pool_id":   &types.AttributeValueMemberS{Value: membership.PoolID},
			"available": optionalBoolAttr(membership.Available),
		},
	})
	return err
}

func (d *DynamoDB) DeleteMembership(personID, poolID string) error {
	membership, err := d.GetMembership(personID, poolID)
	if err != nil || membership == nil {
		return err
	}
	_, err = d.db.DeleteItem(context.TODO(), &dynamodb.DeleteItemInput{
		TableName: aws.String(d.membershipTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: membership.ID},
		},
	})
	return err
}

func (d *DynamoDB) poolPeople(poolID string, onlyAvailable bool) ([]model.Person, error) {
	filter := "pool_id = :pool_id"
	values := map[string]types.AttributeValue{
		":pool_id": &types.AttributeValueMemberS{Value: poolID},
	}
	if onlyAvailable {
		filter += " AND available = :available"
		values[":available"] = &types.AttributeValueMemberN{Value: "1"}
	}
	items, err := d.scan(d.membershipTable, filter, values)
	if err != nil {
		return nil, err
	}

	var people []model.Person
	for _, item := range items {
		person, err := d.GetPersonByID(getStringValue(item, "person_id"))
		if err != nil {
			return nil, err
		}
		if person != nil {
			people = append(people, *person)
		}
	}
	sort.Slice(people, func(i, j int) bool {
		return people[i].Joined.Before(people[j].Joined)
	})
	return people, nil
}

func (d *DynamoDB) PoolMembers(poolID string) ([]model.Person, error) {
	return d.poolPeople(poolID, false)
}

func (d *DynamoDB) AvailablePeople(poolID string) ([]model.Person, error) {
	return d.poolPeople(poolID, true)
}

func (d *DynamoDB) SetPersonAvailability(personID string, available bool) error {
	items, err := d.scan(d.membershipTable, "person_id = :person_id", map[string]types.AttributeValue{
		":person_id": &types.AttributeValueMemberS{Value: personID},
	})
	if err != nil {
		return err
	}
	for _, item := range items {
		membership := membershipFromItem(item)
		membership.Available = &available
		if err := d.SaveMembership(membership); err != nil {
			return err
		}
	}
	return nil
}

func roundFromItem(item map[string]types.AttributeValue) (*model.Round, error) {
	startDate, err := getTimeValue(item, "start_date")
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_date: %v", err)
	}
	endDate, err := getTimeValue(item, "end_date")
	if err != nil {
		return nil, fmt.Errorf("failed to parse end_date: %v", err)
	}
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %v", err)
	}
	return &model.Round{
		ID:        getStringValue(item, "id"),
		PoolID:    getStringValue(item, "pool_id"),
		StartDate: startDate,
		EndDate:   endDate,
		CreatedAt: createdAt,
	}, nil
}

func (d *DynamoDB) SaveRound(round *model.Round) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = timeNow()
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(d.roundTable),
		Item: map[string]types.AttributeValue{
			"id":         &types.AttributeValueMemberS{Value: round.ID},
			"pool_id":    &types.AttributeValueMemberS{Value: round.PoolID},
			"start_date": &types.AttributeValueMemberS{Value: round.StartDate.Format(time.RFC3339)},
			"end_date":   &types.AttributeValueMemberS{Value: round.EndDate.Format(time.RFC3339)},
			"created_at": &types.AttributeValueMemberS{Value: round.CreatedAt.Format(time.RFC3339)},
		},
	})
	return err
}

func (d *DynamoDB) GetRound(id string) (*model.Round, error) {
	item, err := d.getItem(d.roundTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil || item == nil {
		return nil, err
	}
	return roundFromItem(item)
}

func (d *DynamoDB) RoundsForPool(poolID string) ([]model.Round, error) {
	items, err := d.scan(d.roundTable, "pool_id = :pool_id", map[string]types.AttributeValue{
		":pool_id": &types.AttributeValueMemberS{Value: poolID},
	})
	if err != nil {
		return nil, err
	}
	var rounds []model.Round
	for _, item := range items {
		round, err := roundFromItem(item)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, *round)
	}
	// scans don't come back ordered, sort here
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].StartDate.After(rounds[j].StartDate)
	})
	return rounds, nil
}

func (d *DynamoDB) LatestRound(poolID string) (*model.Round, error) {
	rounds, err := d.RoundsForPool(poolID)
	if err != nil || len(rounds) == 0 {
		return nil, err
	}
	return &rounds[0], nil
}

func matchFromItem(item map[string]types.AttributeValue) (*model.Match, error) {
	createdAt, err := getTimeValue(item, "created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %v", err)
	}
	return &model.Match{
		ID:             getStringValue(item, "id"),
		Person1ID:      getStringValue(item, "person_1_id"),
		Person2ID:      getStringValue(item, "person_2_id"),
		RoundID:        getStringValue(item, "round_id"),
		ConversationID: getStringValue(item, "conversation_id"),
		Met:            optionalBoolValue(item, "met"),
		CreatedAt:      createdAt,
	}, nil
}

// pairKey normalizes the two person IDs so a pair hashes the same
// regardless of which side each person is on
func pairKey(person1ID, person2ID string) string {
	if person1ID < person2ID {
		return person1ID + "#" + person2ID
	}
	return person2ID + "#" + person1ID
}

func (d *DynamoDB) SaveMatch(match *model.Match) error {
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = timeNow()
	}
	_, err := d.db.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(d.matchTable),
		Item: map[string]types.AttributeValue{
			"id":              &types.AttributeValueMemberS{Value: match.ID},
			"person_1_id":     &types.AttributeValueMemberS{Value: match.Person1ID},
			"person_2_id":     &types.AttributeValueMemberS{Value: match.Person2ID},
			"pair_key":        &types.AttributeValueMemberS{Value: pairKey(match.Person1ID, match.Person2ID)},
			"round_id":        &types.AttributeValueMemberS{Value: match.RoundID},
			"conversation_id": &types.AttributeValueMemberS{Value: match.ConversationID},
			"met":             optionalBoolAttr(match.Met),
			"created_at":      &types.AttributeValueMemberS{Value: match.CreatedAt.Format(time.RFC3339)},
		},
	})
	return err
}

func (d *DynamoDB) GetMatch(id string) (*model.Match, error) {
	item, err := d.getItem(d.matchTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil || item == nil {
		return nil, err
	}
	return matchFromItem(item)
}

func (d *DynamoDB) MatchesForPool(poolID string) ([]model.Match, error) {
	rounds, err := d.RoundsForPool(poolID)
	if err != nil {
		return nil, err
	}
	var matches []model.Match
	for _, round := range rounds {
		items, err := d.scan(d.matchTable, "round_id = :round_id", map[string]types.AttributeValue{
			":round_id": &types.AttributeValueMemberS{Value: round.ID},
		})
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			match, err := matchFromItem(item)
			if err != nil {
				return nil, err
			}
			matches = append(matches, *match)
		}
	}
	return matches, nil
}

func (d *DynamoDB) LatestMatchForPerson(personID, poolID string) (*model.Match, error) {
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

func (d *DynamoDB) CountMatchesBetween(person1ID, person2ID string) (int, error) {
	items, err := d.scan(d.matchTable, "pair_key = :pair_key", map[string]types.AttributeValue{
		":pair_key": &types.AttributeValueMemberS{Value: pairKey(person1ID, person2ID)},
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (d *DynamoDB) MatchForUser(userID, matchID string) (*model.Match, error) {
	person, err := d.GetPerson(userID)
	if err != nil || person == nil {
		return nil, err
	}
	match, err := d.GetMatch(matchID)
	if err != nil || match == nil {
		return nil, err
	}
	if !match.Includes(person.ID) {
		return nil, nil
	}
	return match, nil
}
