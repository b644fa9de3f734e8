package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/hupe1980/vectable/blobstore"
)

// DDBCommitStore wraps a blobstore.Store and uses DynamoDB conditional writes
// to provide PutIfAbsent. It enables safe concurrent writers on object stores
// without native conditional writes.
//
// A conditional write stages the data under a unique pending name, then
// records an item for the final name with attribute_not_exists. The writer
// that creates the item wins; the staged blob is then copied to the final
// name. Open falls back to the staged location recorded in DynamoDB, so a
// crash between commit and copy does not lose the blob.
//
// Table schema:
//   - Partition key: base_uri (string) - the store location
//   - Sort key: blob_name (string) - the committed blob name
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vectable-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=blob_name,AttributeType=S \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=blob_name,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	inner     blobstore.Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

var _ blobstore.ConditionalStore = (*DDBCommitStore)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

const pendingMarker = ".pending."

// NewDDBCommitStore creates a commit store over inner.
// baseURI identifies the store location (e.g. "s3://bucket/prefix") and is the partition key.
func NewDDBCommitStore(inner blobstore.Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		inner:     inner,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// NewDDBClient creates a DynamoDB client from an AWS configuration.
func NewDDBClient(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

// Open opens a blob for reading.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err == nil || !errors.Is(err, blobstore.ErrNotFound) {
		return b, err
	}

	location, ok, lerr := s.lookup(ctx, name)
	if lerr != nil {
		return nil, lerr
	}
	if !ok {
		return nil, err
	}
	return s.inner.Open(ctx, location)
}

// Put writes a blob to the inner store without coordination.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, name, data)
}

// PutIfAbsent commits name through a DynamoDB conditional put.
func (s *DDBCommitStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	staged := name + pendingMarker + uuid.NewString()
	if err := s.inner.Put(ctx, staged, data); err != nil {
		return err
	}

	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":  &types.AttributeValueMemberS{Value: s.baseURI},
			"blob_name": &types.AttributeValueMemberS{Value: name},
			"location":  &types.AttributeValueMemberS{Value: staged},
		},
		ConditionExpression: aws.String("attribute_not_exists(blob_name)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			_ = s.inner.Delete(ctx, staged)
			return fmt.Errorf("%s: %w", name, blobstore.ErrConflict)
		}

		// The outcome is unknown: the item may have been written before the
		// error surfaced. The staged blob stays unless the commit points elsewhere.
		location, ok, lerr := s.lookup(ctx, name)
		switch {
		case lerr != nil || !ok:
			return fmt.Errorf("failed to commit %s to DynamoDB: %w", name, err)
		case location != staged:
			_ = s.inner.Delete(ctx, staged)
			return fmt.Errorf("%s: %w", name, blobstore.ErrConflict)
		}
	}

	// The commit is durable at this point. Copying to the final name is best
	// effort; Open resolves the staged location if the copy never lands.
	if err := s.inner.Put(ctx, name, data); err == nil {
		_ = s.inner.Delete(ctx, staged)
	}
	return nil
}

// Delete deletes a blob from the inner store.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns committed and plain blob names with prefix. Staged blobs are hidden.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.inner.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.Contains(n, pendingMarker) {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	committed, err := s.committed(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for _, n := range committed {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}

	sort.Strings(out)
	return out, nil
}

// Ping checks the inner store.
func (s *DDBCommitStore) Ping(ctx context.Context) error {
	return blobstore.Ping(ctx, s.inner)
}

func (s *DDBCommitStore) lookup(ctx context.Context, name string) (string, bool, error) {
	resp, err := s.ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"base_uri":  &types.AttributeValueMemberS{Value: s.baseURI},
			"blob_name": &types.AttributeValueMemberS{Value: name},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to read commit %s from DynamoDB: %w", name, err)
	}
	if len(resp.Item) == 0 {
		return "", false, nil
	}
	loc, ok := resp.Item["location"].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, errors.New("invalid location attribute in DynamoDB")
	}
	return loc.Value, true, nil
}

func (s *DDBCommitStore) committed(ctx context.Context, prefix string) ([]string, error) {
	var (
		names []string
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("base_uri = :uri AND begins_with(blob_name, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uri":    &types.AttributeValueMemberS{Value: s.baseURI},
				":prefix": &types.AttributeValueMemberS{Value: prefix},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB: %w", err)
		}
		for _, item := range resp.Items {
			n, ok := item["blob_name"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, errors.New("invalid blob_name attribute in DynamoDB")
			}
			names = append(names, n.Value)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return names, nil
		}
		start = resp.LastEvaluatedKey
	}
}
