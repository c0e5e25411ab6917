// Package dynamostore is a repository.Store on Amazon DynamoDB.
//
// Each record kind lives in its own table keyed by a single string
// attribute. Writes are conditional puts: creates require the key to be
// absent and updates require the stored version to match the one read.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	domaintypes "github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Condition expressions used by the store.
const (
	CondAbsent  = "attribute_not_exists(#k)"
	CondPresent = "attribute_exists(#k)"
	CondVersion = "#v = :v"
)

const defaultMaxRetries = 5

// Client is the subset of *dynamodb.Client the store uses.
type Client interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type table struct {
	name string
	key  string
}

// Store implements repository.Store.
type Store struct {
	client      Client
	players     table
	matches     table
	evaluations table
	logs        table
	maxRetries  int
	logger      logger.Logger
}

var _ repository.Store = (*Store)(nil)

// New returns a store whose table names start with prefix.
func New(client Client, prefix string, opts ...Option) *Store {
	s := &Store{
		client:      client,
		players:     table{name: prefix + "players", key: "id"},
		matches:     table{name: prefix + "matches", key: "id"},
		evaluations: table{name: prefix + "evaluations", key: "matchId"},
		logs:        table{name: prefix + "evaluation_logs", key: "id"},
		maxRetries:  defaultMaxRetries,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func keyOf(t table, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{t.key: &types.AttributeValueMemberS{Value: id}}
}

func (s *Store) get(ctx context.Context, t table, id string, out interface{}) error {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            keyOf(t, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return err
	}
	if res.Item == nil {
		return repository.ErrNotFound
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}

// create puts item only if its key is unused.
func (s *Store) create(ctx context.Context, t table, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.name),
		Item:                     av,
		ConditionExpression:      aws.String(CondAbsent),
		ExpressionAttributeNames: map[string]string{"#k": t.key},
	})
	if isConditionFailed(err) {
		return repository.ErrAlreadyExists
	}
	return err
}

// replace puts item only if the stored version is still prev.
func (s *Store) replace(ctx context.Context, t table, item interface{}, prev int64) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(t.name),
		Item:                      av,
		ConditionExpression:       aws.String(CondVersion),
		ExpressionAttributeNames:  map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(prev, 10)}},
	})
	if isConditionFailed(err) {
		return errStale
	}
	return err
}

var errStale = errors.New("stale version")

// update retries attempt while it reports errStale.
func (s *Store) update(ctx context.Context, op string, attempt func() error) error {
	for i := 0; i < s.maxRetries; i++ {
		err := attempt()
		if errors.Is(err, errStale) {
			s.logger.Debug(ctx, "version conflict, retrying", logger.String("op", op), logger.Int("attempt", i+1))
			continue
		}
		return err
	}
	return repository.Wrap(op, repository.ErrConflict)
}

// scan reads every item of t, following pagination.
func (s *Store) scan(ctx context.Context, t table, in *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	if in == nil {
		in = &dynamodb.ScanInput{}
	}
	in.TableName = aws.String(t.name)
	var items []map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) count(ctx context.Context, t table) (int, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(t.name), Select: types.SelectCount}
	total := 0
	for {
		out, err := s.client.Scan(ctx, in)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func groupFilter(groupID string) *dynamodb.ScanInput {
	if groupID == "" {
		return nil
	}
	return &dynamodb.ScanInput{
		FilterExpression:          aws.String("groupId = :g"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":g": &types.AttributeValueMemberS{Value: groupID}},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// fail maps SDK errors to repository error kinds.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit), errors.As(err, &internal):
		return repository.Wrap(op, fmt.Errorf("%w: %w", repository.ErrUnavailable, err))
	}
	return repository.Wrap(op, err)
}

// Players

func (s *Store) GetPlayer(ctx context.Context, id string) (model.Player, error) {
	var p model.Player
	if err := s.get(ctx, s.players, id, &p); err != nil {
		return model.Player{}, fail("get_player", err)
	}
	return p, nil
}

func (s *Store) ListPlayers(ctx context.Context, groupID string) ([]model.Player, error) {
	items, err := s.scan(ctx, s.players, groupFilter(groupID))
	if err != nil {
		return nil, fail("list_players", err)
	}
	var all []model.Player
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fail("list_players", err)
	}
	out := make([]model.Player, 0, len(all))
	for _, p := range all {
		if groupID == "" || p.GroupID == groupID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Version = 1
	if err := s.create(ctx, s.players, p); err != nil {
		return model.Player{}, fail("create_player", err)
	}
	return p, nil
}

func (s *Store) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	var out model.Player
	var cbErr error
	err := s.update(ctx, "update_player", func() error {
		var cur model.Player
		if err := s.get(ctx, s.players, id, &cur); err != nil {
			return fail("update_player", err)
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			cbErr = err
			return err
		}
		next.ID, next.GroupID = cur.ID, cur.GroupID
		next.Version = cur.Version + 1
		if err := s.replace(ctx, s.players, next, cur.Version); err != nil {
			if errors.Is(err, errStale) {
				return err
			}
			return fail("update_player", err)
		}
		out = next
		return nil
	})
	if cbErr != nil {
		return model.Player{}, cbErr
	}
	if err != nil {
		return model.Player{}, err
	}
	return out, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.players.name),
		Key:                      keyOf(s.players, id),
		ConditionExpression:      aws.String(CondPresent),
		ExpressionAttributeNames: map[string]string{"#k": s.players.key},
	})
	if isConditionFailed(err) {
		return repository.Wrap("delete_player", repository.ErrNotFound)
	}
	return fail("delete_player", err)
}

func (s *Store) TopPlayers(ctx context.Context, groupID string, n int) ([]domaintypes.Entry, error) {
	if n < 1 {
		return nil, repository.Wrap("top_players", repository.ErrInvalidLimit)
	}
	players, err := s.ListPlayers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].OVR != players[j].OVR {
			return players[i].OVR > players[j].OVR
		}
		return players[i].ID < players[j].ID
	})
	if len(players) > n {
		players = players[:n]
	}
	out := make([]domaintypes.Entry, len(players))
	for i, p := range players {
		out[i] = domaintypes.Entry{PlayerID: p.ID, Name: p.Name, Position: p.Position, OVR: p.OVR}
	}
	domaintypes.AssignRanks(out)
	return out, nil
}
