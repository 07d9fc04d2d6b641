package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/portfolio"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	importer  *Service
	insts     *instruments.Repository
	portfolio *portfolio.Service
}

func newFixture(t *testing.T) *fixture {
	db, _ := testingpkg.NewTestDB(t, "ledger")
	log := zerolog.Nop()
	insts := instruments.NewRepository(db.Conn(), log)
	pf := portfolio.NewService(portfolio.NewTransactionRepository(db.Conn(), log), insts, nil, nil, log)
	return &fixture{
		importer:  NewService(insts, pf, nil, log),
		insts:     insts,
		portfolio: pf,
	}
}

func (f *fixture) seed(t *testing.T, tickers ...string) {
	for _, ticker := range tickers {
		require.NoError(t, f.insts.Create(context.Background(), &domain.Instrument{
			Ticker: ticker, Name: ticker, IsActive: true,
		}))
	}
}

func TestImport_IdempotentWithSkipDuplicates(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "WEGE3", "PETR4", "ITUB4")
	ctx := context.Background()
	opts := Options{SkipDuplicates: true, CreateMissingStocks: true}

	first, err := f.importer.Import(ctx, []byte(Template), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, first.SuccessCount)
	assert.Equal(t, 0, first.SkippedCount)
	assert.Equal(t, 0, first.ErrorCount)
	assert.NotEmpty(t, first.BatchID)

	second, err := f.importer.Import(ctx, []byte(Template), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SuccessCount)
	assert.Equal(t, 4, second.SkippedCount)
	assert.Equal(t, 0, second.ErrorCount)

	all, err := f.portfolio.AllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.NotNil(t, all[0].ImportBatch)
	assert.Equal(t, first.BatchID, *all[0].ImportBatch)
}

func TestImport_WithoutSkipDuplicatesInsertsAgain(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "WEGE3", "PETR4", "ITUB4")
	ctx := context.Background()
	opts := Options{CreateMissingStocks: true}

	_, err := f.importer.Import(ctx, []byte(Template), opts)
	require.NoError(t, err)
	second, err := f.importer.Import(ctx, []byte(Template), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, second.SuccessCount)
}

func TestImport_DuplicateInsideSameFile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "WEGE3")
	data := "data,ticker,tipo,quantidade,preco\n" +
		"2024-01-15,WEGE3,compra,100,35.50\n" +
		"15/01/2024,wege3,C,100,\"35,5\"\n"

	result, err := f.importer.Import(context.Background(), []byte(data), Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.SkippedCount)
}

func TestImport_UnknownTickerWithoutCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.importer.Import(ctx, []byte(Template), Options{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 4, result.ErrorCount)
	assert.Empty(t, result.CreatedInstruments)
	assert.Equal(t, "Linha 2: ação WEGE3 não encontrada", result.Errors[0])

	list, err := f.insts.List(ctx, instruments.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImport_CreatesMissingInstruments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.importer.Import(ctx, []byte(Template), Options{CreateMissingStocks: true})
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, []string{"WEGE3", "PETR4", "ITUB4"}, result.CreatedInstruments)
	assert.Len(t, result.Warnings, 3)

	inst, err := f.insts.GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "PETR4 (Importado)", inst.Name)

	h, err := f.portfolio.Holding(ctx, "WEGE3")
	require.NoError(t, err)
	assert.Equal(t, "50", h.Quantity.String())
}

func TestImport_RowAtomicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := "data,ticker,tipo,quantidade,preco\n" +
		"2024-01-15,MGLU3,venda,10,5.00\n" +
		"2024-01-16,VALE3,compra,10,60.00\n" +
		"2024-01-17,VALE3,venda,11,61.00\n"

	result, err := f.importer.Import(ctx, []byte(data), Options{SkipDuplicates: true, CreateMissingStocks: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, []string{"VALE3"}, result.CreatedInstruments)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Linha 2: "))
	assert.True(t, strings.HasPrefix(result.Errors[1], "Linha 4: "))

	inst, err := f.insts.GetByTicker(ctx, "MGLU3")
	require.NoError(t, err)
	assert.Nil(t, inst, "a failed row must not leave its instrument behind")

	all, err := f.portfolio.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImport_ErrorsInterleaveInFileOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "WEGE3")
	data := "data,ticker,tipo,quantidade,preco\n" +
		"2024-01-15,WEGE3,venda,10,5.00\n" +
		"2024-01-16,WEGE3,errado,10,60.00\n"

	result, err := f.importer.Import(context.Background(), []byte(data), Options{})
	require.NoError(t, err)
	require.Len(t, result.Errors, 2)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Linha 2: "))
	assert.True(t, strings.HasPrefix(result.Errors[1], "Linha 3: "))
}

func TestResult_Truncated(t *testing.T) {
	r := Result{ErrorCount: 30}
	for i := 0; i < 30; i++ {
		r.Errors = append(r.Errors, fmt.Sprintf("Linha %d: x", i+2))
		r.Warnings = append(r.Warnings, "w")
	}

	out := r.Truncated()
	assert.Len(t, out.Errors, MaxReportedErrors)
	assert.Len(t, out.Warnings, MaxReportedWarnings)
	assert.Equal(t, 30, out.ErrorCount)
	assert.Len(t, r.Errors, 30)
}
