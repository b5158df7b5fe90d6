package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a SET clause and the
// remove list into a REMOVE clause. Placeholders are assigned in sorted field
// order so the same input always yields the same expression.
func buildUpdateExpr(set map[string]interface{}, remove ...string) (*updateExpr, error) {
	if len(set) == 0 && len(remove) == 0 {
		return nil, errors.New("no fields to update")
	}
	ue := &updateExpr{
		Names:  make(map[string]string, len(set)+len(remove)),
		Values: make(map[string]types.AttributeValue, len(set)),
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	i := 0
	var sets []string
	for _, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(set[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}

	removes := append([]string(nil), remove...)
	sort.Strings(removes)
	var rms []string
	for _, k := range removes {
		nameKey := fmt.Sprintf("#f%d", i)
		ue.Names[nameKey] = k
		rms = append(rms, nameKey)
		i++
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(rms) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(rms, ", "))
	}
	ue.Expr = strings.Join(clauses, " ")
	return ue, nil
}
