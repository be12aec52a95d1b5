// Package armazenamento guarda o último snapshot de indicadores de cada planilha
// em Postgres ou SQLite, para o painel subir já com números na tela.
package armazenamento

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"painelcontratos/models"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const tabela = "indicadores_contratos"

var colunas = []string{
	"fonte",
	"atualizado_em",
	"total_contratos",
	"valor_total_contratos",
	"valor_global_pendente",
	"proximos_vencimento",
	"consumo_abaixo_60",
	"consumo_entre_60_80",
	"consumo_acima_80",
	"consumo_ambiguo",
	"contratos_com_minimo",
	"minimo_atingido",
	"materiais_sem_contrato",
}

// Drivers aceitos em BANCO_DRIVER.
var Drivers = []string{"postgres", "sqlite"}

type Store struct {
	db     *sql.DB
	driver string
}

// DSNPostgres monta a string de conexão a partir das variáveis HOST, PORT,
// USER, PASSWORD e DATABASE (carregadas do .env).
func DSNPostgres() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("HOST"), os.Getenv("PORT"), os.Getenv("USER"), os.Getenv("PASSWORD"), os.Getenv("DATABASE"))
}

// Abrir conecta ao banco e cria a tabela se ela não existir.
func Abrir(ctx context.Context, driver, dsn string) (*Store, error) {
	if !DriverValido(driver) {
		return nil, fmt.Errorf("driver de banco desconhecido: %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão com banco de dados: %w", err)
	}
	if driver == "sqlite" {
		// cada conexão em ":memory:" enxerga um banco diferente
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao conectar com banco de dados: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.criarTabela(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func DriverValido(driver string) bool {
	for _, d := range Drivers {
		if d == driver {
			return true
		}
	}
	return false
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) criarTabela(ctx context.Context) error {
	tipoDecimal := "NUMERIC"
	if s.driver == "sqlite" {
		// SQLite converteria NUMERIC para REAL e perderia casas
		tipoDecimal = "TEXT"
	}
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  fonte TEXT PRIMARY KEY,
  atualizado_em TEXT NOT NULL,
  total_contratos INTEGER NOT NULL,
  valor_total_contratos %[2]s NOT NULL,
  valor_global_pendente %[2]s NOT NULL,
  proximos_vencimento INTEGER NOT NULL,
  consumo_abaixo_60 INTEGER NOT NULL,
  consumo_entre_60_80 INTEGER NOT NULL,
  consumo_acima_80 INTEGER NOT NULL,
  consumo_ambiguo INTEGER NOT NULL,
  contratos_com_minimo INTEGER NOT NULL,
  minimo_atingido INTEGER NOT NULL,
  materiais_sem_contrato INTEGER NOT NULL
)`, tabela, tipoDecimal)

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("erro ao criar tabela %s: %w", tabela, err)
	}
	return nil
}

func (s *Store) placeholder(i int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// Salvar grava o snapshot, substituindo o anterior da mesma fonte.
func (s *Store) Salvar(ctx context.Context, snap models.Snapshot) error {
	marcadores := make([]string, len(colunas))
	atualiza := make([]string, 0, len(colunas)-1)
	for i, c := range colunas {
		marcadores[i] = s.placeholder(i + 1)
		if c != "fonte" {
			atualiza = append(atualiza, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (fonte) DO UPDATE SET %s",
		tabela,
		strings.Join(colunas, ", "),
		strings.Join(marcadores, ", "),
		strings.Join(atualiza, ", "))

	ind := snap.Indicadores
	_, err := s.db.ExecContext(ctx, query,
		snap.Fonte,
		snap.AtualizadoEm.Format(time.RFC3339Nano),
		ind.TotalContratos,
		ind.ValorTotalContratos,
		ind.ValorGlobalPendente,
		ind.ProximosVencimento,
		ind.ConsumoAbaixo60,
		ind.ConsumoEntre60e80,
		ind.ConsumoAcima80,
		ind.ConsumoAmbiguo,
		ind.ContratosComMinimo,
		ind.MinimoAtingido,
		ind.MateriaisSemContrato,
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar indicadores de %q: %w", snap.Fonte, err)
	}
	return nil
}

// Publicar permite usar o Store como destino do atualizador.
func (s *Store) Publicar(ctx context.Context, snap models.Snapshot) error {
	return s.Salvar(ctx, snap)
}

// Ultimo lê o snapshot salvo da fonte. ok é false se nada foi salvo ainda.
func (s *Store) Ultimo(ctx context.Context, fonte string) (snap models.Snapshot, ok bool, err error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE fonte = %s",
		strings.Join(colunas[1:], ", "), tabela, s.placeholder(1))

	var ind models.Indicadores
	var atualizadoEm string
	err = s.db.QueryRowContext(ctx, query, fonte).Scan(
		&atualizadoEm,
		&ind.TotalContratos,
		&ind.ValorTotalContratos,
		&ind.ValorGlobalPendente,
		&ind.ProximosVencimento,
		&ind.ConsumoAbaixo60,
		&ind.ConsumoEntre60e80,
		&ind.ConsumoAcima80,
		&ind.ConsumoAmbiguo,
		&ind.ContratosComMinimo,
		&ind.MinimoAtingido,
		&ind.MateriaisSemContrato,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("erro ao ler indicadores de %q: %w", fonte, err)
	}

	em, err := time.Parse(time.RFC3339Nano, atualizadoEm)
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("data de atualização inválida no banco: %w", err)
	}
	return models.NovoSnapshot(fonte, ind, em), true, nil
}
