package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-bookstore/core/query"
	"github.com/asaidimu/go-bookstore/core/schema"
)

// QueryGenerator defines the SQL statements a collection table needs.
type QueryGenerator interface {
	GenerateSelectSQL(filter *query.QueryFilter, limit int) (string, []any, error)
	GenerateUpdateSQL(id string, body string) (string, []any, error)
	GenerateInsertSQL(rows []storedRow) (string, []any, error)
	GenerateDropSQL() string
}

// storedRow is the physical form of a document: the canonical identifier key and the
// JSON encoding of the whole document.
type storedRow struct {
	ID   string
	Body string
}

// SqliteQuery generates SQL against a single document table. Every document is stored
// as one JSON value in the body column, so fields are reached through json_extract.
type SqliteQuery struct {
	table string
}

// NewSqliteQuery creates a new query generator for the given (already prefixed) table.
func NewSqliteQuery(table string) (*SqliteQuery, error) {
	if table == "" {
		return nil, fmt.Errorf("a table name is required")
	}
	return &SqliteQuery{table: table}, nil
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// jsonPath renders a dotted field path as a SQLite JSON path with every key quoted.
func jsonPath(fieldPath string) (string, error) {
	parts, err := schema.SplitPath(fieldPath)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("$")
	for _, p := range parts {
		sb.WriteString(`."`)
		sb.WriteString(strings.ReplaceAll(p, `"`, `\"`))
		sb.WriteString(`"`)
	}
	return sb.String(), nil
}

// prepareValueForQuery converts a Go value into the SQL value json_extract yields for
// the same JSON content: booleans become 0/1, objects and sequences their JSON text.
func prepareValueForQuery(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return v, nil
	}
	if f, ok := query.ToFloat64(value); ok {
		return f, nil
	}
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize value to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// GenerateSelectSQL creates a SELECT returning the identifier and body of matching rows
// in insertion order.
func (s *SqliteQuery) GenerateSelectSQL(filter *query.QueryFilter, limit int) (string, []any, error) {
	var queryParams []any
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`SELECT "id", "body" FROM %s`, quoteIdentifier(s.table)))

	if filter != nil {
		whereSQL, err := s.buildWhereClause(filter, &queryParams)
		if err != nil {
			return "", nil, fmt.Errorf("error building WHERE clause: %w", err)
		}
		if whereSQL != "" {
			sb.WriteString(" WHERE " + whereSQL)
		}
	}
	sb.WriteString(" ORDER BY rowid")
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}
	return sb.String() + ";", queryParams, nil
}

// buildWhereClause recursively builds the WHERE clause from a query.QueryFilter.
func (s *SqliteQuery) buildWhereClause(filter *query.QueryFilter, params *[]any) (string, error) {
	if filter.Condition != nil {
		return s.buildCondition(filter.Condition, params)
	}
	if filter.Group != nil {
		if filter.Group.Operator == "" {
			return "", fmt.Errorf("logical operator missing in filter group")
		}
		var clauses []string
		for i := range filter.Group.Conditions {
			clause, err := s.buildWhereClause(&filter.Group.Conditions[i], params)
			if err != nil {
				return "", err
			}
			if clause != "" {
				clauses = append(clauses, clause)
			}
		}
		if len(clauses) == 0 {
			return "", nil
		}
		switch filter.Group.Operator {
		case query.LogicalOperatorAnd:
			return fmt.Sprintf("(%s)", strings.Join(clauses, " AND ")), nil
		case query.LogicalOperatorOr:
			return fmt.Sprintf("(%s)", strings.Join(clauses, " OR ")), nil
		case query.LogicalOperatorNor:
			return fmt.Sprintf("NOT (%s)", strings.Join(clauses, " OR ")), nil
		default:
			return "", fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return "", fmt.Errorf("invalid filter structure: neither Condition nor Group is set")
}

// buildCondition translates a single query.FilterCondition into a SQL condition. A
// missing field fails every operator except neq, nin and nexists.
func (s *SqliteQuery) buildCondition(cond *query.FilterCondition, params *[]any) (string, error) {
	if cond.Field == schema.IDField {
		if clause, ok, err := s.buildIDCondition(cond, params); ok || err != nil {
			return clause, err
		}
	}

	path, err := jsonPath(cond.Field)
	if err != nil {
		return "", err
	}
	accessor := `json_extract("body", ?)`
	present := `json_type("body", ?) IS NOT NULL`

	switch cond.Operator {
	case query.ComparisonOperatorExists:
		*params = append(*params, path)
		return present, nil
	case query.ComparisonOperatorNotExists:
		*params = append(*params, path)
		return `json_type("body", ?) IS NULL`, nil
	case query.ComparisonOperatorEq, query.ComparisonOperatorLt, query.ComparisonOperatorLte,
		query.ComparisonOperatorGt, query.ComparisonOperatorGte:
		prepared, err := prepareValueForQuery(cond.Value)
		if err != nil {
			return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
		}
		*params = append(*params, path, prepared)
		return fmt.Sprintf("%s %s ?", accessor, sqlOperator(cond.Operator)), nil
	case query.ComparisonOperatorNeq:
		prepared, err := prepareValueForQuery(cond.Value)
		if err != nil {
			return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
		}
		*params = append(*params, path, path, prepared)
		return fmt.Sprintf(`(json_type("body", ?) IS NULL OR %s IS NOT ?)`, accessor), nil
	case query.ComparisonOperatorIn, query.ComparisonOperatorNin:
		vals, ok := schema.ToSequence(cond.Value)
		if !ok {
			vals = []any{cond.Value}
		}
		if len(vals) == 0 {
			if cond.Operator == query.ComparisonOperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		prepared := make([]any, 0, len(vals))
		for _, v := range vals {
			pv, err := prepareValueForQuery(v)
			if err != nil {
				return "", fmt.Errorf("failed to prepare value for condition field '%s': %w", cond.Field, err)
			}
			prepared = append(prepared, pv)
		}
		placeholders := strings.Repeat("?,", len(prepared)-1) + "?"
		if cond.Operator == query.ComparisonOperatorIn {
			*params = append(*params, path)
			*params = append(*params, prepared...)
			return fmt.Sprintf("%s IN (%s)", accessor, placeholders), nil
		}
		*params = append(*params, path, path)
		*params = append(*params, prepared...)
		return fmt.Sprintf(`(json_type("body", ?) IS NULL OR %s NOT IN (%s))`, accessor, placeholders), nil
	default:
		return "", fmt.Errorf("unsupported comparison operator for direct SQL: %s", cond.Operator)
	}
}

// buildIDCondition serves equality lookups on the identifier from the primary key
// column. The boolean is false when the operator has to go through the body instead.
func (s *SqliteQuery) buildIDCondition(cond *query.FilterCondition, params *[]any) (string, bool, error) {
	switch cond.Operator {
	case query.ComparisonOperatorEq:
		key, err := schema.IDKey(cond.Value)
		if err != nil {
			return "", false, err
		}
		*params = append(*params, key)
		return `"id" = ?`, true, nil
	case query.ComparisonOperatorIn:
		vals, ok := schema.ToSequence(cond.Value)
		if !ok {
			vals = []any{cond.Value}
		}
		if len(vals) == 0 {
			return "1=0", true, nil
		}
		for _, v := range vals {
			key, err := schema.IDKey(v)
			if err != nil {
				return "", false, err
			}
			*params = append(*params, key)
		}
		return fmt.Sprintf(`"id" IN (%s)`, strings.Repeat("?,", len(vals)-1)+"?"), true, nil
	default:
		return "", false, nil
	}
}

func sqlOperator(op query.ComparisonOperator) string {
	switch op {
	case query.ComparisonOperatorLt:
		return "<"
	case query.ComparisonOperatorLte:
		return "<="
	case query.ComparisonOperatorGt:
		return ">"
	case query.ComparisonOperatorGte:
		return ">="
	default:
		return "="
	}
}

// GenerateUpdateSQL replaces the body of a single row.
func (s *SqliteQuery) GenerateUpdateSQL(id string, body string) (string, []any, error) {
	if id == "" {
		return "", nil, fmt.Errorf("an identifier is required for update")
	}
	sql := fmt.Sprintf(`UPDATE %s SET "body" = ? WHERE "id" = ?;`, quoteIdentifier(s.table))
	return sql, []any{body, id}, nil
}

// GenerateInsertSQL creates a multi-row INSERT. It includes the RETURNING clause for
// atomic retrieval of the stored bodies. NOTE: Requires SQLite version 3.35.0+.
func (s *SqliteQuery) GenerateInsertSQL(rows []storedRow) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("no records provided for insert")
	}
	valuesClauses := make([]string, 0, len(rows))
	queryParams := make([]any, 0, len(rows)*2)
	for _, row := range rows {
		valuesClauses = append(valuesClauses, "(?, ?)")
		queryParams = append(queryParams, row.ID, row.Body)
	}
	sql := fmt.Sprintf(`INSERT INTO %s ("id", "body") VALUES %s RETURNING "id", "body";`,
		quoteIdentifier(s.table), strings.Join(valuesClauses, ", "))
	return sql, queryParams, nil
}

// GenerateDropSQL removes the table.
func (s *SqliteQuery) GenerateDropSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdentifier(s.table))
}
