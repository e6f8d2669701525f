// Package catalog stores symbol metadata in PostgreSQL. The table is
// replaced wholesale on every sync, so reads never see a partial list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minqi/freedom/internal/contracts"
)

// SearchFilter narrows a symbol search. Name and TsCode match as
// case-insensitive substrings, Industry matches exactly. Empty fields
// are ignored.
type SearchFilter struct {
	Name     string
	TsCode   string
	Industry string
}

// SearchResult is one page of symbols plus the unpaginated total.
type SearchResult struct {
	Items    []contracts.SymbolInfo `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

const defaultPageSize = 50

// Repository handles symbol catalog persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the catalog table if it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS stock_basic (
			ts_code   TEXT PRIMARY KEY,
			symbol    TEXT NOT NULL,
			name      TEXT NOT NULL,
			area      TEXT NOT NULL DEFAULT '',
			industry  TEXT NOT NULL DEFAULT '',
			market    TEXT NOT NULL DEFAULT '',
			list_date TEXT NOT NULL DEFAULT ''
		)
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create stock_basic: %w", err)
	}
	return nil
}

// Replace swaps the whole catalog for the given rows in one transaction
// and returns the number of rows written.
func (r *Repository) Replace(ctx context.Context, rows []contracts.SymbolInfo) (int, error) {
	if err := r.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stock_basic`); err != nil {
		return 0, fmt.Errorf("clear stock_basic: %w", err)
	}

	query := `
		INSERT INTO stock_basic (
			ts_code, symbol, name, area, industry, market, list_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, s := range rows {
		_, err := tx.Exec(ctx, query,
			s.TsCode, s.Symbol, s.Name, s.Area, s.Industry, s.Market, s.ListDate,
		)
		if err != nil {
			return 0, fmt.Errorf("insert symbol %s: %w", s.TsCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return len(rows), nil
}

// Search returns one page of symbols matching the filter, ordered by
// ts_code so pagination is stable. A catalog that has never been synced
// yields an empty result, not an error.
func (r *Repository) Search(ctx context.Context, filter SearchFilter, page, pageSize int) (*SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	where, args := buildFilter(filter)

	result := &SearchResult{
		Items:    []contracts.SymbolInfo{},
		Page:     page,
		PageSize: pageSize,
	}

	countQuery := `SELECT COUNT(*) FROM stock_basic` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&result.Total); err != nil {
		if isUndefinedTable(err) {
			return result, nil
		}
		return nil, fmt.Errorf("count symbols: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT ts_code, symbol, name, area, industry, market, list_date
		FROM stock_basic%s
		ORDER BY ts_code
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s contracts.SymbolInfo
		if err := rows.Scan(&s.TsCode, &s.Symbol, &s.Name, &s.Area, &s.Industry, &s.Market, &s.ListDate); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		result.Items = append(result.Items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return result, nil
}

// Industries returns the distinct non-empty industry names, sorted.
func (r *Repository) Industries(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT industry
		FROM stock_basic
		WHERE industry <> ''
		ORDER BY industry
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		if isUndefinedTable(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("query industries: %w", err)
	}
	defer rows.Close()

	industries := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan industry: %w", err)
		}
		industries = append(industries, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return industries, nil
}

// MainBoardPrefixes are the exchange symbol prefixes covered by batch
// operations that run over the whole universe: Shanghai main board,
// Shenzhen main board, and ChiNext.
var MainBoardPrefixes = []string{"600", "000", "300"}

// ListTsCodes returns the ts_codes of all symbols whose bare exchange
// symbol starts with one of the given prefixes. With no prefixes the
// whole catalog is returned.
func (r *Repository) ListTsCodes(ctx context.Context, prefixes []string) ([]string, error) {
	query := `SELECT ts_code FROM stock_basic`
	var args []any
	if len(prefixes) > 0 {
		var clauses []string
		for _, p := range prefixes {
			args = append(args, p+"%")
			clauses = append(clauses, fmt.Sprintf("symbol LIKE $%d", len(args)))
		}
		query += " WHERE " + strings.Join(clauses, " OR ")
	}
	query += " ORDER BY ts_code"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("query ts_codes: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan ts_code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return codes, nil
}

// GetByCode looks up a single symbol by its full ts_code.
func (r *Repository) GetByCode(ctx context.Context, tsCode string) (*contracts.SymbolInfo, error) {
	query := `
		SELECT ts_code, symbol, name, area, industry, market, list_date
		FROM stock_basic
		WHERE ts_code = $1
	`

	var s contracts.SymbolInfo
	err := r.db.QueryRow(ctx, query, tsCode).Scan(
		&s.TsCode, &s.Symbol, &s.Name, &s.Area, &s.Industry, &s.Market, &s.ListDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return nil, fmt.Errorf("symbol %s: %w", tsCode, contracts.ErrNotFound)
		}
		return nil, fmt.Errorf("query symbol %s: %w", tsCode, err)
	}

	return &s, nil
}

// ResolveTsCode maps a bare exchange symbol like "000001" to its full
// ts_code. Inputs that already carry an exchange suffix pass through
// unchanged without touching the database.
func (r *Repository) ResolveTsCode(ctx context.Context, symbol string) (string, error) {
	if strings.Contains(symbol, ".") {
		return symbol, nil
	}

	query := `SELECT ts_code FROM stock_basic WHERE symbol = $1`

	var tsCode string
	err := r.db.QueryRow(ctx, query, symbol).Scan(&tsCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return "", fmt.Errorf("symbol %s: %w", symbol, contracts.ErrNotFound)
		}
		return "", fmt.Errorf("resolve symbol %s: %w", symbol, err)
	}

	return tsCode, nil
}

func buildFilter(filter SearchFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.TsCode != "" {
		args = append(args, "%"+filter.TsCode+"%")
		clauses = append(clauses, fmt.Sprintf("ts_code ILIKE $%d", len(args)))
	}
	if filter.Industry != "" {
		args = append(args, filter.Industry)
		clauses = append(clauses, fmt.Sprintf("industry = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// isUndefinedTable reports whether err is Postgres 42P01, which shows up
// when the catalog is queried before the first sync.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
