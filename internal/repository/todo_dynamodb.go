package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jaekwang-park/todo-dynamo/internal/awsclient"
	"github.com/jaekwang-park/todo-dynamo/internal/model"
)

// Attribute names of a todo item.
const (
	AttrUserID        = "userId"
	AttrTodoID        = "todoId"
	AttrCreatedAt     = "createdAt"
	AttrName          = "name"
	AttrDueDate       = "dueDate"
	AttrDone          = "done"
	AttrAttachmentURL = "attachmentUrl"
)

// API is the subset of the DynamoDB client used by DynamoTodoRepository.
type API interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// DynamoTodoRepository stores todo items in a DynamoDB table keyed by
// userId (partition) and todoId (sort).
type DynamoTodoRepository struct {
	client    API
	tableName string
	opts      *Options
}

// NewDynamoTodo returns a repository for tableName. It fails only on invalid
// options.
func NewDynamoTodo(client API, tableName string, opts ...Option) (*DynamoTodoRepository, error) {
	options := newOptions()
	for _, o := range opts {
		o(options)
	}

	if client == nil {
		return nil, errors.New("DynamoDB client cannot be nil")
	}
	if tableName == "" {
		return nil, errors.New("table name cannot be empty")
	}
	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid repository options: %w", err)
	}

	return &DynamoTodoRepository{
		client:    client,
		tableName: tableName,
		opts:      options,
	}, nil
}

func (r *DynamoTodoRepository) logger() *slog.Logger {
	return r.opts.logger
}

// Init validates the table schema: the composite primary key, ACTIVE table
// status, and both secondary indexes. Pass skipSchemaValidation to return
// immediately.
func (r *DynamoTodoRepository) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	out, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		var notFound *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("table %s does not exist", r.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", r.tableName, awsclient.MapError(err))
	}

	table := out.Table
	if table == nil {
		return fmt.Errorf("table %s has no description", r.tableName)
	}
	if err := verifyKeySchema(table.KeySchema, AttrUserID, AttrTodoID); err != nil {
		return fmt.Errorf("table %s: %w", r.tableName, err)
	}
	if table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", r.tableName, table.TableStatus)
	}
	if err := verifyCreatedAtIndex(table, r.opts.createdAtIndex); err != nil {
		return fmt.Errorf("table %s: %w", r.tableName, err)
	}
	if err := verifyGlobalIndex(table, r.opts.todoIDIndex, AttrTodoID, ""); err != nil {
		return fmt.Errorf("table %s: %w", r.tableName, err)
	}

	return nil
}

// GetAll scans the whole table.
func (r *DynamoTodoRepository) GetAll(ctx context.Context) ([]model.TodoItem, error) {
	r.logger().DebugContext(ctx, "getting all todos", "table", r.tableName)

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})

	items := []model.TodoItem{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB table %s: %w", r.tableName, awsclient.MapError(err))
		}
		batch, err := unmarshalItems(page.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}

	return items, nil
}

// ListByUser returns all of a user's items in creation order.
func (r *DynamoTodoRepository) ListByUser(ctx context.Context, userID string) ([]model.TodoItem, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	r.logger().DebugContext(ctx, "getting todos by user", "user_id", userID)

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(AttrUserID).Equal(expression.Value(userID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.opts.createdAtIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	items := []model.TodoItem{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query todos from DynamoDB table %s: %w", r.tableName, awsclient.MapError(err))
		}
		batch, err := unmarshalItems(page.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}

	return items, nil
}

// Get reads the item under the full key with a strongly consistent read, so
// a write that just succeeded is always visible.
func (r *DynamoTodoRepository) Get(ctx context.Context, userID, todoID string) (model.TodoItem, error) {
	key, err := itemKey(userID, todoID)
	if err != nil {
		return model.TodoItem{}, err
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to get todo %s from DynamoDB table %s: %w", todoID, r.tableName, awsclient.MapError(err))
	}

	if len(out.Item) == 0 {
		return model.TodoItem{}, ErrNotFound
	}

	var item model.TodoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to unmarshal todo: %w", err)
	}
	return item, nil
}

// FindByID looks an item up by its id alone, regardless of owner. The todo-id
// index is eventually consistent, so a fresh item may not be visible yet.
func (r *DynamoTodoRepository) FindByID(ctx context.Context, todoID string) (model.TodoItem, error) {
	if todoID == "" {
		return model.TodoItem{}, errors.New("todo ID cannot be empty")
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(AttrTodoID).Equal(expression.Value(todoID))).
		Build()
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to build query expression: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.opts.todoIDIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to query todo %s from DynamoDB table %s: %w", todoID, r.tableName, awsclient.MapError(err))
	}

	if len(out.Items) == 0 {
		return model.TodoItem{}, ErrNotFound
	}

	var item model.TodoItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to unmarshal todo: %w", err)
	}
	return item, nil
}

// Create writes a new item. It never overwrites an existing one.
func (r *DynamoTodoRepository) Create(ctx context.Context, item model.TodoItem) (model.TodoItem, error) {
	if item.UserID == "" || item.TodoID == "" {
		return model.TodoItem{}, errors.New("todo must have a user ID and a todo ID")
	}

	r.logger().DebugContext(ctx, "creating todo", "user_id", item.UserID, "todo_id", item.TodoID)

	attributes, err := attributevalue.MarshalMap(item)
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to marshal todo: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(AttrTodoID))).
		Build()
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      attributes,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return model.TodoItem{}, ErrAlreadyExists
		}
		return model.TodoItem{}, fmt.Errorf("failed to write todo to DynamoDB table %s: %w", r.tableName, awsclient.MapError(err))
	}

	return item, nil
}

// Update sets name, dueDate and done on an existing item and returns the
// item as stored after the write.
func (r *DynamoTodoRepository) Update(ctx context.Context, userID, todoID string, update model.TodoUpdate) (model.TodoItem, error) {
	r.logger().DebugContext(ctx, "updating todo", "user_id", userID, "todo_id", todoID)

	set := expression.
		Set(expression.Name(AttrName), expression.Value(update.Name)).
		Set(expression.Name(AttrDueDate), expression.Value(update.DueDate)).
		Set(expression.Name(AttrDone), expression.Value(update.Done))

	return r.conditionalUpdate(ctx, userID, todoID, set)
}

func (r *DynamoTodoRepository) SetAttachmentURL(ctx context.Context, userID, todoID, url string) error {
	r.logger().DebugContext(ctx, "setting attachment url", "user_id", userID, "todo_id", todoID)

	set := expression.Set(expression.Name(AttrAttachmentURL), expression.Value(url))
	_, err := r.conditionalUpdate(ctx, userID, todoID, set)
	return err
}

func (r *DynamoTodoRepository) conditionalUpdate(ctx context.Context, userID, todoID string, update expression.UpdateBuilder) (model.TodoItem, error) {
	key, err := itemKey(userID, todoID)
	if err != nil {
		return model.TodoItem{}, err
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(AttrTodoID))).
		Build()
	if err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to build update expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              dynamodbtypes.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return model.TodoItem{}, ErrNotFound
		}
		return model.TodoItem{}, fmt.Errorf("failed to update todo %s in DynamoDB table %s: %w", todoID, r.tableName, awsclient.MapError(err))
	}

	var item model.TodoItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return model.TodoItem{}, fmt.Errorf("failed to unmarshal updated todo: %w", err)
	}
	return item, nil
}

// Delete removes an item. Deleting a missing item returns ErrNotFound.
func (r *DynamoTodoRepository) Delete(ctx context.Context, userID, todoID string) error {
	r.logger().DebugContext(ctx, "deleting todo", "user_id", userID, "todo_id", todoID)

	key, err := itemKey(userID, todoID)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(AttrTodoID))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete todo %s from DynamoDB table %s: %w", todoID, r.tableName, awsclient.MapError(err))
	}

	return nil
}

func itemKey(userID, todoID string) (map[string]dynamodbtypes.AttributeValue, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	if todoID == "" {
		return nil, errors.New("todo ID cannot be empty")
	}
	return map[string]dynamodbtypes.AttributeValue{
		AttrUserID: &dynamodbtypes.AttributeValueMemberS{Value: userID},
		AttrTodoID: &dynamodbtypes.AttributeValueMemberS{Value: todoID},
	}, nil
}

func unmarshalItems(raw []map[string]dynamodbtypes.AttributeValue) ([]model.TodoItem, error) {
	var items []model.TodoItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal todos: %w", err)
	}
	return items, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *dynamodbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func verifyKeySchema(schema []dynamodbtypes.KeySchemaElement, partitionKey, sortKey string) error {
	if len(schema) < 1 {
		return errors.New("no key schema")
	}

	var hash, rng string
	for _, el := range schema {
		switch el.KeyType {
		case dynamodbtypes.KeyTypeHash:
			hash = aws.ToString(el.AttributeName)
		case dynamodbtypes.KeyTypeRange:
			rng = aws.ToString(el.AttributeName)
		}
	}

	if hash != partitionKey {
		return fmt.Errorf("partition key is %q, expected %q", hash, partitionKey)
	}
	if sortKey != "" && rng != sortKey {
		return fmt.Errorf("sort key is %q, expected %q", rng, sortKey)
	}
	return nil
}

// verifyCreatedAtIndex accepts the created-at index either as a local or a
// global secondary index.
func verifyCreatedAtIndex(table *dynamodbtypes.TableDescription, indexName string) error {
	for _, index := range table.LocalSecondaryIndexes {
		if aws.ToString(index.IndexName) == indexName {
			if err := verifyKeySchema(index.KeySchema, AttrUserID, AttrCreatedAt); err != nil {
				return fmt.Errorf("local secondary index %s: %w", indexName, err)
			}
			return nil
		}
	}
	return verifyGlobalIndex(table, indexName, AttrUserID, AttrCreatedAt)
}

func verifyGlobalIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}
		if err := verifyKeySchema(index.KeySchema, partitionKey, sortKey); err != nil {
			return fmt.Errorf("global secondary index %s: %w", indexName, err)
		}
		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}
		if index.Projection == nil || index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project all attributes", indexName)
		}
		return nil
	}
	return fmt.Errorf("secondary index %s not found", indexName)
}

// ensure compile-time interface compliance
var _ TodoRepository = (*DynamoTodoRepository)(nil)
