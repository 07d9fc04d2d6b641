package instruments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/stockwatch/internal/database"
)

type catalogueEntry struct {
	Ticker    string
	Name      string
	Sector    string
	Subsector string
}

// b3Catalogue is the starting set of B3 listings offered on a fresh install.
var b3Catalogue = []catalogueEntry{
	// Bancos
	{"ITUB4", "Itaú Unibanco", "Financeiro", "Bancos"},
	{"BBDC4", "Bradesco", "Financeiro", "Bancos"},
	{"BBAS3", "Banco do Brasil", "Financeiro", "Bancos"},
	{"SANB11", "Santander Brasil", "Financeiro", "Bancos"},
	{"ITSA4", "Itaúsa", "Financeiro", "Holdings"},

	// Petróleo e gás
	{"PETR4", "Petrobras PN", "Petróleo e Gás", "Exploração"},
	{"PETR3", "Petrobras ON", "Petróleo e Gás", "Exploração"},
	{"PRIO3", "PRIO", "Petróleo e Gás", "Exploração"},
	{"CSAN3", "Cosan", "Petróleo e Gás", "Distribuição"},
	{"UGPA3", "Ultrapar", "Petróleo e Gás", "Distribuição"},

	// Elétricas
	{"ELET3", "Eletrobras ON", "Energia Elétrica", "Geração"},
	{"ELET6", "Eletrobras PNB", "Energia Elétrica", "Geração"},
	{"EGIE3", "Engie Brasil", "Energia Elétrica", "Geração"},
	{"EQTL3", "Equatorial", "Energia Elétrica", "Distribuição"},
	{"CPFE3", "CPFL Energia", "Energia Elétrica", "Distribuição"},
	{"TAEE11", "Taesa", "Energia Elétrica", "Transmissão"},
	{"CMIG4", "Cemig", "Energia Elétrica", "Integradas"},

	// Mineração e siderurgia
	{"VALE3", "Vale", "Mineração", "Minerais Metálicos"},
	{"CSNA3", "CSN", "Siderurgia", "Siderurgia"},
	{"GGBR4", "Gerdau", "Siderurgia", "Siderurgia"},
	{"GOAU4", "Gerdau Metalúrgica", "Siderurgia", "Siderurgia"},
	{"USIM5", "Usiminas", "Siderurgia", "Siderurgia"},

	// Consumo
	{"ABEV3", "Ambev", "Consumo", "Bebidas"},
	{"MGLU3", "Magazine Luiza", "Consumo", "Varejo"},
	{"LREN3", "Lojas Renner", "Consumo", "Varejo"},
	{"PETZ3", "Petz", "Consumo", "Varejo"},
	{"ARZZ3", "Arezzo", "Consumo", "Calçados"},
	{"NTCO3", "Natura", "Consumo", "Cosméticos"},

	// Bens industriais
	{"WEGE3", "WEG", "Bens Industriais", "Máquinas"},
	{"EMBR3", "Embraer", "Bens Industriais", "Aeronáutica"},
	{"RENT3", "Localiza", "Bens Industriais", "Aluguel Carros"},
	{"RAIL3", "Rumo", "Bens Industriais", "Logística"},

	// Saúde
	{"RDOR3", "Rede D'Or", "Saúde", "Hospitais"},
	{"HAPV3", "Hapvida", "Saúde", "Planos de Saúde"},
	{"FLRY3", "Fleury", "Saúde", "Diagnósticos"},
	{"RADL3", "RD Saúde (Raia Drogasil)", "Saúde", "Farmácias"},

	// Construção
	{"CYRE3", "Cyrela", "Construção", "Incorporação"},
	{"MRVE3", "MRV", "Construção", "Incorporação"},
	{"EZTC3", "EZTec", "Construção", "Incorporação"},

	// Telecom
	{"VIVT3", "Telefônica Vivo", "Telecomunicações", "Telefonia"},
	{"TIMS3", "TIM", "Telecomunicações", "Telefonia"},

	// Saneamento
	{"SBSP3", "Sabesp", "Saneamento", "Água e Esgoto"},
	{"CSMG3", "Copasa", "Saneamento", "Água e Esgoto"},

	// Seguros, papel e celulose
	{"BBSE3", "BB Seguridade", "Financeiro", "Seguros"},
	{"PSSA3", "Porto Seguro", "Financeiro", "Seguros"},
	{"SUZB3", "Suzano", "Papel e Celulose", "Celulose"},
	{"KLBN11", "Klabin", "Papel e Celulose", "Celulose"},

	// Alimentos
	{"JBSS3", "JBS", "Alimentos", "Carnes"},
	{"BRFS3", "BRF", "Alimentos", "Carnes"},
	{"BEEF3", "Minerva", "Alimentos", "Carnes"},
	{"MDIA3", "M. Dias Branco", "Alimentos", "Alimentos"},

	// Shoppings
	{"MULT3", "Multiplan", "Shoppings", "Shoppings"},
	{"IGTI11", "Iguatemi", "Shoppings", "Shoppings"},

	// Tecnologia
	{"TOTS3", "Totvs", "Tecnologia", "Software"},
	{"LWSA3", "Locaweb", "Tecnologia", "Internet"},

	{"B3SA3", "B3", "Financeiro", "Bolsa"},
}

// SeedCatalogue inserts the bundled B3 catalogue in one transaction and
// returns how many instruments were added. Tickers already present are left
// as they are, deactivated ones included, so running it again adds nothing.
func (r *Repository) SeedCatalogue(ctx context.Context) (int, error) {
	var added int

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC().Unix()
		for _, e := range b3Catalogue {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO instruments (ticker, name, sector, subsector, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, 1, ?, ?)
				ON CONFLICT(ticker) DO NOTHING`,
				e.Ticker, e.Name, e.Sector, e.Subsector, now, now,
			)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", e.Ticker, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected for %s: %w", e.Ticker, err)
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Info().Int("added", added).Int("catalogue", len(b3Catalogue)).Msg("Instrument catalogue seeded")
	return added, nil
}
