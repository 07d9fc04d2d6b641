// Package importer reconciles broker CSV exports with the transaction ledger.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a ledger attribute a CSV column can map to.
type Field string

const (
	FieldTicker   Field = "ticker"
	FieldType     Field = "type"
	FieldQuantity Field = "quantity"
	FieldPrice    Field = "price"
	FieldDate     Field = "date"
	FieldFees     Field = "fees"
	FieldNotes    Field = "notes"
)

var requiredFields = []Field{FieldTicker, FieldType, FieldQuantity, FieldPrice, FieldDate}

// headerAliases maps each field to accepted column names, most specific
// first. Names are compared after accent folding and lower-casing. Covers the
// B3 investor area export, broker notes (Clear, XP, Rico) and plain English.
var headerAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldTicker, []string{"ticker", "codigo de negociacao", "codigo negociacao", "especificacao do titulo",
		"ativo", "papel", "codigo", "titulo", "symbol", "stock", "acao"}},
	{FieldType, []string{"tipo", "tipo de movimentacao", "tipo movimentacao", "movimentacao", "c/v",
		"compra/venda", "operacao", "natureza", "type", "side", "operation"}},
	{FieldQuantity, []string{"quantidade", "qtde", "qtd", "qt", "quantity", "qty"}},
	{FieldPrice, []string{"preco", "preco unitario", "preco/ajuste", "valor unitario", "price", "unit price", "valor"}},
	{FieldDate, []string{"data", "data do negocio", "data negocio", "data pregao", "data da operacao",
		"data operacao", "dt pregao", "date", "dt"}},
	{FieldFees, []string{"taxas", "taxa", "taxa operacional", "corretagem", "emolumentos", "custos", "fees", "fee"}},
	{FieldNotes, []string{"observacoes", "observacao", "obs", "notas", "notes"}},
}

var typeAliases = map[string]domain.TransactionType{
	"c": domain.TransactionBuy, "compra": domain.TransactionBuy, "buy": domain.TransactionBuy,
	"b": domain.TransactionBuy, "aquisicao": domain.TransactionBuy, "entrada": domain.TransactionBuy,
	"credito": domain.TransactionBuy, "+": domain.TransactionBuy,
	"v": domain.TransactionSell, "venda": domain.TransactionSell, "sell": domain.TransactionSell,
	"s": domain.TransactionSell, "alienacao": domain.TransactionSell, "saida": domain.TransactionSell,
	"debito": domain.TransactionSell, "-": domain.TransactionSell,
}

// dateLayouts are tried in order; day-first layouts win over the US one.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"02/01/06",
	"02-01-06",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
}

const (
	minYear = 1990
	maxYear = 2100
)

var (
	b3Ticker       = regexp.MustCompile(`[A-Z]{4}[0-9]{1,2}`)
	b3TickerExact  = regexp.MustCompile(`^[A-Z]{4}[0-9]{1,2}$`)
	thousandsGroup = regexp.MustCompile(`^[0-9]{1,3}([.,][0-9]{3})+$`)
	digitsOnly     = regexp.MustCompile(`^[0-9]+$`)
	currencyNoise  = strings.NewReplacer("R$", "", "$", "", " ", "", "\u00a0", "")
)

// Row is one successfully parsed CSV line.
type Row struct {
	Line     int
	Ticker   string
	Type     domain.TransactionType
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fees     decimal.Decimal
	Date     domain.Date
	Notes    string
}

// RowError is a line that could not be parsed.
type RowError struct {
	Line    int
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("Linha %d: %s", e.Line, e.Message)
}

// ParsedFile is the outcome of Parse: good rows and bad rows, in file order.
type ParsedFile struct {
	Delimiter rune
	Columns   map[Field]int
	Rows      []Row
	Errors    []RowError
}

// Parse decodes data, detects the delimiter, maps the header and parses every
// non-empty line. A file without the required columns is a validation error;
// individual bad lines are reported in ParsedFile.Errors.
func Parse(data []byte) (*ParsedFile, error) {
	text := decode(data)
	delim := detectDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.NewValidationError("file", "arquivo vazio ou sem dados")
	}
	if err != nil {
		return nil, domain.NewValidationError("file", "CSV inválido: %v", err)
	}

	columns, missing := mapColumns(header)
	if len(missing) > 0 {
		return nil, domain.NewValidationError("file",
			"não foi possível identificar as colunas obrigatórias (%s); o arquivo deve conter ticker, tipo, quantidade, preço e data",
			joinFields(missing))
	}

	out := &ParsedFile{Delimiter: delim, Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read CSV: %w", err)
			}
			out.Errors = append(out.Errors, RowError{Line: perr.Line, Message: fmt.Sprintf("linha malformada: %v", perr.Err)})
			continue
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		row, msg := parseRecord(record, columns)
		if msg != "" {
			out.Errors = append(out.Errors, RowError{Line: line, Message: msg})
			continue
		}
		row.Line = line
		out.Rows = append(out.Rows, row)
	}

	if len(out.Rows) == 0 && len(out.Errors) == 0 {
		return nil, domain.NewValidationError("file", "arquivo vazio ou sem dados")
	}
	return out, nil
}

// decode returns data as UTF-8 text. A UTF-8 BOM is dropped; input that is
// not valid UTF-8 is read as Windows-1252, a superset of Latin-1 that Excel
// uses for Brazilian exports.
func decode(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		decoded, _ = charmap.ISO8859_1.NewDecoder().Bytes(data)
	}
	return string(decoded)
}

// detectDelimiter picks the most frequent of comma, semicolon and tab over
// the first five lines. Ties go to the comma.
func detectDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}

	best, bestCount := ',', -1
	for _, d := range []rune{',', ';', '\t'} {
		n := 0
		for _, l := range lines {
			n += strings.Count(l, string(d))
		}
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// fold lower-cases s and strips accents.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// mapColumns assigns header columns to fields. Exact alias matches are
// preferred; otherwise a header containing a multi-letter alias matches. A
// column is used for at most one field.
func mapColumns(header []string) (map[Field]int, []Field) {
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = fold(h)
	}

	columns := make(map[Field]int)
	taken := make(map[int]bool)

	find := func(aliases []string, exact bool) (int, bool) {
		for _, alias := range aliases {
			for i, h := range folded {
				if taken[i] || h == "" {
					continue
				}
				if h == alias || (!exact && len(alias) >= 3 && strings.Contains(h, alias)) {
					return i, true
				}
			}
		}
		return 0, false
	}

	for _, pass := range []bool{true, false} {
		for _, entry := range headerAliases {
			if _, done := columns[entry.field]; done {
				continue
			}
			if i, ok := find(entry.aliases, pass); ok {
				columns[entry.field] = i
				taken[i] = true
			}
		}
	}

	var missing []Field
	for _, f := range requiredFields {
		if _, ok := columns[f]; !ok {
			missing = append(missing, f)
		}
	}
	return columns, missing
}

func joinFields(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseRecord returns the row or a user-facing error message.
func parseRecord(record []string, columns map[Field]int) (Row, string) {
	get := func(f Field) string {
		i, ok := columns[f]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var row Row

	row.Ticker = ParseTicker(get(FieldTicker))
	if row.Ticker == "" || instruments.ValidateTicker(row.Ticker) != nil {
		return row, fmt.Sprintf("ticker não encontrado ou inválido (%q)", get(FieldTicker))
	}

	var ok bool
	if row.Type, ok = ParseType(get(FieldType)); !ok {
		return row, fmt.Sprintf("tipo de operação não reconhecido para %s (%q)", row.Ticker, get(FieldType))
	}

	qty, err := ParseQuantity(get(FieldQuantity))
	if err != nil {
		return row, fmt.Sprintf("quantidade inválida para %s (%q)", row.Ticker, get(FieldQuantity))
	}
	row.Quantity = decimal.NewFromInt(qty)

	if row.Price, err = ParsePrice(get(FieldPrice)); err != nil || !row.Price.IsPositive() {
		return row, fmt.Sprintf("preço inválido para %s (%q)", row.Ticker, get(FieldPrice))
	}

	if row.Date, err = ParseDate(get(FieldDate)); err != nil {
		return row, fmt.Sprintf("data inválida para %s (%q)", row.Ticker, get(FieldDate))
	}

	row.Fees = decimal.Zero
	if raw := get(FieldFees); raw != "" {
		if row.Fees, err = ParsePrice(raw); err != nil || row.Fees.IsNegative() {
			return row, fmt.Sprintf("taxas inválidas para %s (%q)", row.Ticker, raw)
		}
	}

	row.Notes = get(FieldNotes)
	return row, ""
}

// ParseTicker extracts a ticker from cells like "WEGE3", "wege3f" or
// "WEGE3 ON NM". The fractional-market F suffix is removed.
func ParseTicker(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if fields := strings.Fields(v); len(fields) > 0 {
		v = fields[0]
	} else {
		return ""
	}
	if strings.HasSuffix(v, "F") && len(v) > 5 && b3TickerExact.MatchString(v[:len(v)-1]) {
		v = v[:len(v)-1]
	}
	if b3TickerExact.MatchString(v) {
		return v
	}
	if m := b3Ticker.FindString(strings.ToUpper(raw)); m != "" {
		return m
	}
	return v
}

// ParseType maps buy/sell spellings (c, compra, buy, v, venda, sell, ...).
func ParseType(raw string) (domain.TransactionType, bool) {
	v := fold(raw)
	if t, ok := typeAliases[v]; ok {
		return t, true
	}
	if fields := strings.Fields(v); len(fields) > 1 {
		if t, ok := typeAliases[fields[0]]; ok {
			return t, true
		}
	}
	return "", false
}

// ParseQuantity accepts positive whole numbers, optionally with thousands
// separators ("1.000", "1,000") or a sign.
func ParseQuantity(raw string) (int64, error) {
	v := strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""), "+-")
	if thousandsGroup.MatchString(v) {
		v = strings.NewReplacer(".", "", ",", "").Replace(v)
	}
	if !digitsOnly.MatchString(v) {
		return 0, fmt.Errorf("not a whole number: %q", raw)
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.IsPositive() || !d.IsInteger() {
		return 0, fmt.Errorf("not a positive whole number: %q", raw)
	}
	return d.IntPart(), nil
}

// ParsePrice reads Brazilian ("R$ 1.234,56") and US ("1,234.56") notation.
// When both separators appear the later one is the decimal mark; a lone
// comma is a decimal comma.
func ParsePrice(raw string) (decimal.Decimal, error) {
	v := currencyNoise.Replace(strings.TrimSpace(raw))
	if v == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}

	comma, dot := strings.LastIndex(v, ","), strings.LastIndex(v, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		v = strings.ReplaceAll(v, ",", "")
	case comma >= 0:
		if strings.Count(v, ",") > 1 {
			return decimal.Zero, fmt.Errorf("ambiguous number %q", raw)
		}
		v = strings.Replace(v, ",", ".", 1)
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return d, nil
}

// ParseDate accepts the common Brazilian, ISO and US layouts. Years outside
// 1990..2100 are rejected.
func ParseDate(raw string) (domain.Date, error) {
	v := strings.TrimSpace(raw)
	if i := strings.IndexAny(v, " T"); i > 0 {
		v = v[:i]
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err != nil {
			continue
		}
		if t.Year() < minYear || t.Year() > maxYear {
			continue
		}
		return domain.DateOf(t), nil
	}
	return domain.Date{}, fmt.Errorf("unrecognized date %q", raw)
}
