package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"painelcontratos/atualizacao"
	"painelcontratos/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func tabela(t *testing.T, cabecalho []string, linhas ...[]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(append([][]string{cabecalho}, linhas...),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	require.NoError(t, df.Err)
	return df
}

func planilhaTeste(t *testing.T) models.Planilha {
	return models.Planilha{
		Analise: tabela(t,
			[]string{models.ColDocCompra, models.ColValFixado, models.ColValGlPend, models.ColFimValidade, models.ColFarolSaldo},
			[]string{"A1", "1500000000", "250000000", "01/01/2027", "0.5"},
			[]string{"B2", "2000000000", "0", "01/01/2030", "0.7"},
			[]string{"C3", "0", "0", "01/01/2030", "0.95"},
		),
		Contratos: tabela(t,
			[]string{models.ColDocCompra, models.ColValFixado, models.ColValGlPend, models.ColConsumoMinimo, models.ColValorConsumoMinimo, models.ColFimValidade},
			[]string{"K1", "100", "40", "Sim", "50", "01/01/2027"},
			[]string{"K2", "100", "90", "Sim", "50", "01/01/2027"},
		),
		Demanda: tabela(t, []string{models.ColContratoVigente},
			[]string{"Não"}, []string{"Não"}, []string{"Sim"}),
	}
}

// servidorTeste monta o servidor com um atualizador cuja carga é controlada pelo teste.
func servidorTeste(t *testing.T, carregar atualizacao.CarregarFunc) (*servidor, *atualizacao.Atualizador) {
	t.Helper()
	cfg := configPadrao()
	cfg.LinkPowerBI = "https://app.powerbi.com/links/exemplo"
	at := atualizacao.Novo(cfg.Planilha, cfg.Intervalo, zap.NewNop())
	at.Carregar = carregar
	at.Agora = func() time.Time { return time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC) }

	srv, err := novoServidor(cfg, at, zap.NewNop())
	require.NoError(t, err)
	return srv, at
}

func servidorCarregado(t *testing.T) *servidor {
	p := planilhaTeste(t)
	srv, at := servidorTeste(t, func(context.Context, string) (models.Planilha, error) { return p, nil })
	_, err := at.Atualizar(context.Background())
	require.NoError(t, err)
	return srv
}

func requisitar(srv *servidor, metodo, alvo string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.rotas().ServeHTTP(rec, httptest.NewRequest(metodo, alvo, nil))
	return rec
}

func TestIndicadoresHandler(t *testing.T) {
	rec := requisitar(servidorCarregado(t), http.MethodGet, "/api/indicadores")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var corpo map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &corpo))
	for _, campo := range []string{
		"total_contracts", "total_contract_value", "total_pending_value", "near_expiry_count",
		"below_60", "between_60_80", "above_80", "contracts_with_minimum", "minimum_reached",
		"materials_without_contract", "last_updated",
	} {
		assert.Contains(t, corpo, campo)
	}
	assert.Equal(t, float64(3), corpo["total_contracts"])
	assert.Equal(t, "3.5", corpo["total_contract_value"])
	assert.Equal(t, float64(1), corpo["minimum_reached"])
	assert.Equal(t, float64(2), corpo["materials_without_contract"])
	assert.Equal(t, "19/10/2026 10:00:00", corpo["last_updated"])
}

func TestIndicadoresSemSnapshot(t *testing.T) {
	srv, at := servidorTeste(t, func(context.Context, string) (models.Planilha, error) {
		return models.Planilha{}, &models.MissingSheetError{Sheet: models.AbaAnalise}
	})
	_, err := at.Atualizar(context.Background())
	require.Error(t, err)

	rec := requisitar(srv, http.MethodGet, "/api/indicadores")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ANÁLISE")
}

func TestConsumoHandler(t *testing.T) {
	rec := requisitar(servidorCarregado(t), http.MethodGet, "/api/consumo")
	require.Equal(t, http.StatusOK, rec.Code)

	var faixas []models.FaixaConsumo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &faixas))
	assert.Equal(t, []models.FaixaConsumo{
		{Rotulo: "Abaixo de 60%", Quantidade: 1, Cor: "green"},
		{Rotulo: "Entre 60% e 80%", Quantidade: 1, Cor: "orange"},
		{Rotulo: "Acima de 80%", Quantidade: 1, Cor: "red"},
	}, faixas)
}

func TestGraficoHandler(t *testing.T) {
	srv := servidorCarregado(t)

	rec := requisitar(srv, http.MethodGet, "/grafico/consumo.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = requisitar(srv, http.MethodGet, "/grafico/consumo.png?formato=svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))

	rec = requisitar(srv, http.MethodGet, "/grafico/consumo.png?formato=gif")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPainelHandler(t *testing.T) {
	rec := requisitar(servidorCarregado(t), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	corpo := rec.Body.String()

	assert.Contains(t, corpo, "Análise Descritiva Contratos de Materiais")
	assert.Contains(t, corpo, "Data da última atualização: 19/10/2026 10:00:00")
	assert.Contains(t, corpo, `content="3600"`)
	assert.Contains(t, corpo, "3,500", "valor em bilhões com vírgula decimal")
	assert.Contains(t, corpo, "0,250")
	assert.Contains(t, corpo, "Materiais Sem Contrato")
	assert.Contains(t, corpo, "https://app.powerbi.com/links/exemplo")
	assert.Contains(t, corpo, "/grafico/consumo.png")
	assert.NotContains(t, corpo, `class="erro"`)
}

func TestPainelMostraFalhaMantendoDados(t *testing.T) {
	p := planilhaTeste(t)
	falhar := false
	srv, at := servidorTeste(t, func(context.Context, string) (models.Planilha, error) {
		if falhar {
			return models.Planilha{}, errors.New("arquivo bloqueado")
		}
		return p, nil
	})
	_, err := at.Atualizar(context.Background())
	require.NoError(t, err)
	falhar = true
	_, err = at.Atualizar(context.Background())
	require.Error(t, err)

	corpo := requisitar(srv, http.MethodGet, "/").Body.String()
	assert.Contains(t, corpo, "arquivo bloqueado")
	assert.Contains(t, corpo, "exibindo os últimos dados válidos")
	assert.Contains(t, corpo, "3,500")
}

func TestPainelSemDados(t *testing.T) {
	srv, _ := servidorTeste(t, nil)
	rec := requisitar(srv, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Aguardando a primeira leitura")

	assert.Equal(t, http.StatusNotFound, requisitar(srv, http.MethodGet, "/outra").Code)
}

func TestStatusHandler(t *testing.T) {
	rec := requisitar(servidorCarregado(t), http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st statusResposta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "BASE BI CONTRATOS.xlsx", st.Planilha)
	assert.Equal(t, "1h0m0s", st.Intervalo)
	assert.Equal(t, "19/10/2026 10:00:00", st.LastUpdated)
	assert.Empty(t, st.UltimoErro)
}

func TestAtualizarHandler(t *testing.T) {
	srv := servidorCarregado(t)

	rec := requisitar(srv, http.MethodGet, "/api/atualizar")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = requisitar(srv, http.MethodPost, "/api/atualizar")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCorsPreflight(t *testing.T) {
	rec := requisitar(servidorCarregado(t), http.MethodOptions, "/api/indicadores")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())
}

func TestExecutarEncerraComContexto(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := planilhaTeste(t)
	srv, at := servidorTeste(t, func(context.Context, string) (models.Planilha, error) { return p, nil })
	srv.cfg.Endereco = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	fim := make(chan error, 1)
	go func() { fim <- srv.executar(ctx) }()

	require.Eventually(t, func() bool { return at.Estado().Snapshot != nil }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-fim:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("servidor não encerrou")
	}
}
