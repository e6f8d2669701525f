package catalog

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/pkg/config"
	"github.com/minqi/freedom/pkg/database"
)

// Integration tests run only against a real database.
func testRepository(t *testing.T) *Repository {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewRepository(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, repo.EnsureSchema(ctx))

	return repo
}

func seedSymbols(t *testing.T, repo *Repository) {
	t.Helper()
	rows := []contracts.SymbolInfo{
		{TsCode: "000001.SZ", Symbol: "000001", Name: "平安银行", Area: "深圳", Industry: "银行", Market: "主板", ListDate: "19910403"},
		{TsCode: "000002.SZ", Symbol: "000002", Name: "万科A", Area: "深圳", Industry: "全国地产", Market: "主板", ListDate: "19910129"},
		{TsCode: "600000.SH", Symbol: "600000", Name: "浦发银行", Area: "上海", Industry: "银行", Market: "主板", ListDate: "19991110"},
	}
	n, err := repo.Replace(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), n)
}

func TestReplaceIsWholesale(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	// A second replace with one row must leave exactly one row behind.
	n, err := repo.Replace(ctx, []contracts.SymbolInfo{
		{TsCode: "300750.SZ", Symbol: "300750", Name: "宁德时代", Industry: "电气设备"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := repo.Search(ctx, SearchFilter{}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "300750.SZ", res.Items[0].TsCode)
}

func TestSearchFilters(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	res, err := repo.Search(ctx, SearchFilter{Industry: "银行"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = repo.Search(ctx, SearchFilter{TsCode: "6000"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "600000.SH", res.Items[0].TsCode)

	res, err = repo.Search(ctx, SearchFilter{Name: "万科"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "000002.SZ", res.Items[0].TsCode)
}

func TestSearchPagination(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	first, err := repo.Search(ctx, SearchFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	require.Len(t, first.Items, 2)

	second, err := repo.Search(ctx, SearchFilter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)

	// Ordered by ts_code: pages never overlap.
	assert.Equal(t, "000001.SZ", first.Items[0].TsCode)
	assert.Equal(t, "000002.SZ", first.Items[1].TsCode)
	assert.Equal(t, "600000.SH", second.Items[0].TsCode)
}

func TestIndustries(t *testing.T) {
	repo := testRepository(t)

	seedSymbols(t, repo)

	industries, err := repo.Industries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"全国地产", "银行"}, industries)
}

func TestGetByCode(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	info, err := repo.GetByCode(ctx, "000001.SZ")
	require.NoError(t, err)
	assert.Equal(t, "平安银行", info.Name)

	_, err = repo.GetByCode(ctx, "999999.SZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestResolveTsCode(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	tsCode, err := repo.ResolveTsCode(ctx, "600000")
	require.NoError(t, err)
	assert.Equal(t, "600000.SH", tsCode)

	// Already-suffixed codes pass through without a lookup.
	tsCode, err = repo.ResolveTsCode(ctx, "600000.SH")
	require.NoError(t, err)
	assert.Equal(t, "600000.SH", tsCode)

	_, err = repo.ResolveTsCode(ctx, "999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestListTsCodes(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	seedSymbols(t, repo)

	codes, err := repo.ListTsCodes(ctx, MainBoardPrefixes)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001.SZ", "000002.SZ", "600000.SH"}, codes)

	codes, err = repo.ListTsCodes(ctx, []string{"600"})
	require.NoError(t, err)
	assert.Equal(t, []string{"600000.SH"}, codes)

	codes, err = repo.ListTsCodes(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}

func TestBuildFilter(t *testing.T) {
	where, args := buildFilter(SearchFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildFilter(SearchFilter{Name: "bank", Industry: "银行"})
	assert.Equal(t, " WHERE name ILIKE $1 AND industry = $2", where)
	assert.Equal(t, []any{"%bank%", "银行"}, args)
}
