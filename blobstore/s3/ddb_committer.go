package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/hnswkit/blobstore"
)

// DDBCommitter implements blobstore.Committer on DynamoDB conditional writes.
// This enables safe concurrent publishers.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix/path
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name hnswkit-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitter struct {
	client    DDBClient
	tableName string
	baseURI   string
	now       func() time.Time
}

var _ blobstore.Committer = (*DDBCommitter)(nil)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// NewDDBCommitter creates a committer. The baseURI should be "s3://bucket/prefix";
// it partitions commits so several indexes can share one table.
func NewDDBCommitter(client DDBClient, tableName, baseURI string) *DDBCommitter {
	return &DDBCommitter{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
		now:       time.Now,
	}
}

// Latest queries DynamoDB for the latest committed version.
func (c *DDBCommitter) Latest(ctx context.Context) (blobstore.Commit, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return blobstore.Commit{}, fmt.Errorf("failed to query DynamoDB: %w", err)
	}

	if len(resp.Items) == 0 {
		return blobstore.Commit{}, blobstore.ErrNotFound
	}

	return decodeCommit(resp.Items[0])
}

// Commit atomically records name as the next version.
func (c *DDBCommitter) Commit(ctx context.Context, name string) (blobstore.Commit, error) {
	if name == "" {
		return blobstore.Commit{}, errors.New("s3: empty commit name")
	}

	var next uint64 = 1
	latest, err := c.Latest(ctx)
	switch {
	case err == nil:
		next = latest.Version + 1
	case !errors.Is(err, blobstore.ErrNotFound):
		return blobstore.Commit{}, err
	}

	commit := blobstore.Commit{Version: next, Name: name, Time: c.now().UTC()}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: c.baseURI},
			"version":      &types.AttributeValueMemberN{Value: strconv.FormatUint(commit.Version, 10)},
			"image_name":   &types.AttributeValueMemberS{Value: commit.Name},
			"committed_at": &types.AttributeValueMemberS{Value: commit.Time.Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return blobstore.Commit{}, blobstore.ErrConcurrentModification
		}
		return blobstore.Commit{}, fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}

	return commit, nil
}

func decodeCommit(item map[string]types.AttributeValue) (blobstore.Commit, error) {
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return blobstore.Commit{}, errors.New("invalid version attribute in DynamoDB")
	}
	nameAttr, ok := item["image_name"].(*types.AttributeValueMemberS)
	if !ok {
		return blobstore.Commit{}, errors.New("invalid image_name attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return blobstore.Commit{}, fmt.Errorf("failed to parse version: %w", err)
	}

	commit := blobstore.Commit{Version: version, Name: nameAttr.Value}
	if ts, ok := item["committed_at"].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts.Value); err == nil {
			commit.Time = t
		}
	}
	return commit, nil
}
