package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/sync"
	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// collectionTables maps collection ids onto their MySQL tables. Unknown
// collections are rejected rather than interpolated into SQL.
var collectionTables = map[string]string{
	"trades":               "trades",
	"ledgers":              "ledgers",
	"orders":               "orders",
	"movements":            "movements",
	"positionsHistory":     "positions_history",
	"fundingOfferHistory":  "funding_offer_history",
	"fundingLoanHistory":   "funding_loan_history",
	"fundingCreditHistory": "funding_credit_history",
	"publicTrades":         "public_trades",
	"tickersHistory":       "tickers_history",
	"symbols":              "symbols",
	"currencies":           "currencies",
	sync.ConfCollection:    "public_colls_conf",
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// MySQLClient handles MySQL database operations
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, dsn string, logger *logrus.Logger) (*MySQLClient, error) {
	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).
		Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// GetAccountCredentials retrieves all active account credentials
func (mc *MySQLClient) GetAccountCredentials(ctx context.Context) ([]models.AccountCredential, error) {
	query := `
		SELECT id, api_key, api_secret, email, is_active, created_at
		FROM users
		WHERE is_active = 1
		ORDER BY id
	`

	rows, err := mc.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var accounts []models.AccountCredential
	for rows.Next() {
		var a models.AccountCredential
		if err := rows.Scan(&a.ID, &a.APIKey, &a.APISecret, &a.Email, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// GetLastRecord returns the newest record of a collection matching the
// filter, by date field, or nil when the collection is empty.
func (mc *MySQLClient) GetLastRecord(ctx context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error) {
	return mc.getEdgeRecord(ctx, collection, filter, dateField, "DESC")
}

// GetFirstRecord returns the oldest record of a collection matching the
// filter, by date field, or nil when the collection is empty.
func (mc *MySQLClient) GetFirstRecord(ctx context.Context, collection string, filter map[string]interface{}, dateField string) (models.Record, error) {
	return mc.getEdgeRecord(ctx, collection, filter, dateField, "ASC")
}

func (mc *MySQLClient) getEdgeRecord(ctx context.Context, collection string, filter map[string]interface{}, dateField, dir string) (models.Record, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}
	if !identPattern.MatchString(dateField) {
		return nil, fmt.Errorf("invalid date field %q", dateField)
	}

	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s %s LIMIT 1",
		table, where, dateField, dir)

	rows, err := mc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
	}
	return rec, rows.Err()
}

// InsertRecords persists one page of records in a single transaction. Filter
// columns are written into every row; a filter key the schema already
// persists stays record-valued rather than naming the column twice.
func (mc *MySQLClient) InsertRecords(ctx context.Context, collection string, filter map[string]interface{}, columns []string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	cols := append([]string(nil), columns...)
	persisted := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		persisted[c] = struct{}{}
	}
	var filterCols []string
	for _, c := range sortedKeys(filter) {
		if _, ok := persisted[c]; ok {
			continue
		}
		filterCols = append(filterCols, c)
	}
	cols = append(cols, filterCols...)
	if err := checkIdents(cols); err != nil {
		return err
	}

	rowPlaceholder := "(" + placeholders(len(cols)) + ")"
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]interface{}, 0, len(records)*len(cols))
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rowPlaceholder)
		for _, c := range columns {
			args = append(args, rec[c])
		}
		for _, c := range filterCols {
			args = append(args, filter[c])
		}
	}

	return mc.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		return nil
	})
}

// InsertRecordsIfAbsent inserts rows not already present by identity key.
// Relies on the unique key the migrations define over the identity fields;
// existing rows are never touched.
func (mc *MySQLClient) InsertRecordsIfAbsent(ctx context.Context, collection string, keyFields, columns []string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	table, err := tableFor(collection)
	if err != nil {
		return err
	}
	if err := checkIdents(columns); err != nil {
		return err
	}

	rowPlaceholder := "(" + placeholders(len(columns)) + ")"
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT IGNORE INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	args := make([]interface{}, 0, len(records)*len(columns))
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(rowPlaceholder)
		for _, c := range columns {
			args = append(args, rec[c])
		}
	}

	return mc.execTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("failed to upsert into %s: %w", table, err)
		}
		return nil
	})
}

// RemoveRecordsNotInLists deletes rows whose value for any listed field is
// absent from that field's allowed set.
func (mc *MySQLClient) RemoveRecordsNotInLists(ctx context.Context, collection string, allowed map[string][]interface{}) error {
	table, err := tableFor(collection)
	if err != nil {
		return err
	}

	var clauses []string
	var args []interface{}
	for _, field := range sortedKeys2(allowed) {
		values := allowed[field]
		if !identPattern.MatchString(field) {
			return fmt.Errorf("invalid field %q", field)
		}
		if len(values) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s NOT IN (%s)", field, placeholders(len(values))))
		args = append(args, values...)
	}
	if len(clauses) == 0 {
		return nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(clauses, " OR "))
	if _, err := mc.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete stale rows from %s: %w", table, err)
	}
	return nil
}

// GetRecordsBy returns the minimum of q.MinField per q.GroupField value,
// narrowed by q.Filter. Used to read the per-symbol public configuration.
func (mc *MySQLClient) GetRecordsBy(ctx context.Context, collection string, q sync.QueryBy) ([]models.Record, error) {
	table, err := tableFor(collection)
	if err != nil {
		return nil, err
	}
	if !identPattern.MatchString(q.MinField) || !identPattern.MatchString(q.GroupField) {
		return nil, fmt.Errorf("invalid query fields %q/%q", q.MinField, q.GroupField)
	}

	where, args := buildWhere(q.Filter)
	query := fmt.Sprintf("SELECT %s, MIN(%s) AS %s FROM %s%s GROUP BY %s ORDER BY %s",
		q.GroupField, q.MinField, q.MinField, table, where, q.GroupField, q.GroupField)

	rows, err := mc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// execTx executes a function within a transaction
func (mc *MySQLClient) execTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func tableFor(collection string) (string, error) {
	table, ok := collectionTables[collection]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return table, nil
}

func checkIdents(cols []string) error {
	for _, c := range cols {
		if !identPattern.MatchString(c) {
			return fmt.Errorf("invalid column %q", c)
		}
	}
	return nil
}

func buildWhere(filter map[string]interface{}) (string, []interface{}) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := sortedKeys(filter)
	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = ?", k))
		args = append(args, filter[k])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys2(m map[string][]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// scanRecord reads the current row into a Record keyed by column name.
// Driver []byte values become strings; integer and float columns keep their
// native types.
func scanRecord(rows *sql.Rows) (models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(models.Record, len(cols))
	for i, c := range cols {
		switch v := values[i].(type) {
		case []byte:
			rec[c] = string(v)
		default:
			rec[c] = v
		}
	}
	return rec, nil
}
