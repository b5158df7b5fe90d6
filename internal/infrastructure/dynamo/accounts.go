package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-accounts/internal/config"
	"github.com/go-api-accounts/internal/domain"
)

// API is the subset of the DynamoDB client used by the repositories.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// AccountRepo stores accounts in two tables: accounts (PK account_id) and
// account_emails (PK email -> account_id). The second table enforces email
// uniqueness inside the same transaction that creates the account.
type AccountRepo struct {
	client      API
	accounts    string
	emailsTable string
}

func NewAccountRepo(client API, tables config.DynamoTables) *AccountRepo {
	return &AccountRepo{client: client, accounts: tables.Accounts, emailsTable: tables.AccountEmails}
}

type emailItem struct {
	Email     string `dynamodbav:"email"`
	AccountID string `dynamodbav:"account_id"`
}

func (r *AccountRepo) FindByID(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.accounts),
		Key:            strKey(fieldAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var e emailItem
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal email index: %w", err)
	}
	return r.FindByID(ctx, e.AccountID)
}

// Create writes the account and claims its email in one transaction.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	emailRow, err := attributevalue.MarshalMap(emailItem{Email: a.Email, AccountID: a.AccountID})
	if err != nil {
		return fmt.Errorf("marshal email index: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.accounts),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldAccountID},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     emailRow,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldEmail},
			}},
		},
	})
	if err != nil {
		switch failed := canceledAt(err); {
		case failed[1]:
			return fmt.Errorf("create account: %w", domain.ErrDuplicateEmail)
		case failed[0]:
			return fmt.Errorf("create account: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Save persists the mutable fields of a if the stored version still equals
// a.Version, then advances a.Version.
func (r *AccountRepo) Save(ctx context.Context, a *domain.Account) error {
	set := map[string]interface{}{
		fieldPasswordHash: a.PasswordHash,
		fieldIsVerified:   a.IsVerified,
		fieldVersion:      a.Version + 1,
		fieldUpdatedAt:    a.UpdatedAt,
	}
	var remove []string
	if a.PendingOTP != nil {
		set[fieldPendingOTP] = a.PendingOTP
	} else {
		remove = append(remove, fieldPendingOTP)
	}
	if a.PendingResetToken != "" {
		set[fieldResetToken] = a.PendingResetToken
	} else {
		remove = append(remove, fieldResetToken)
	}

	ue, err := buildUpdateExpr(set, remove...)
	if err != nil {
		return err
	}
	ue.Names["#ver"] = fieldVersion
	ue.Values[":expected"] = versionValue(a.Version)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.accounts),
		Key:                       strKey(fieldAccountID, a.AccountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("save account %s: %w", a.AccountID, domain.ErrConflict)
		}
		return err
	}
	a.Version++
	return nil
}

// Delete removes the account and releases its email in one transaction.
func (r *AccountRepo) Delete(ctx context.Context, a *domain.Account) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.accounts),
				Key:                       strKey(fieldAccountID, a.AccountID),
				ConditionExpression:       aws.String("#ver = :expected"),
				ExpressionAttributeNames:  map[string]string{"#ver": fieldVersion},
				ExpressionAttributeValues: map[string]types.AttributeValue{":expected": versionValue(a.Version)},
			}},
			{Delete: &types.Delete{
				TableName:                 aws.String(r.emailsTable),
				Key:                       strKey(fieldEmail, a.Email),
				ConditionExpression:       aws.String("#id = :id"),
				ExpressionAttributeNames:  map[string]string{"#id": fieldAccountID},
				ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: a.AccountID}},
			}},
		},
	})
	if err != nil {
		if failed := canceledAt(err); failed[0] || failed[1] {
			return fmt.Errorf("delete account %s: %w", a.AccountID, domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Ping checks that the accounts table is reachable.
func (r *AccountRepo) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.accounts)})
	return err
}

func versionValue(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

// canceledAt reports, per transaction item, whether a condition check failed.
func canceledAt(err error) [2]bool {
	var failed [2]bool
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return failed
	}
	for i, reason := range tce.CancellationReasons {
		if i < len(failed) && aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed[i] = true
		}
	}
	return failed
}
