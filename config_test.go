package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ambiente(vars map[string]string) func(string) (string, bool) {
	return func(chave string) (string, bool) {
		v, ok := vars[chave]
		return v, ok
	}
}

func TestConfigPadrao(t *testing.T) {
	cfg := configPadrao()
	assert.Equal(t, "BASE BI CONTRATOS.xlsx", cfg.Planilha)
	assert.Equal(t, ":8055", cfg.Endereco)
	assert.Equal(t, time.Hour, cfg.Intervalo)
	assert.True(t, cfg.ObservarArquivo)
	assert.Empty(t, cfg.BancoDriver)
	assert.NoError(t, cfg.Validar())
}

func TestAplicarAmbiente(t *testing.T) {
	cfg := configPadrao()
	err := aplicarAmbiente(&cfg, ambiente(map[string]string{
		"PLANILHA":              " https://sharepoint/base.xlsx ",
		"INTERVALO_ATUALIZACAO": "5m",
		"OBSERVAR_ARQUIVO":      "false",
		"LINK_POWERBI":          "https://app.powerbi.com/x",
		"BANCO_DRIVER":          "sqlite",
		"BANCO_DSN":             "painel.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://sharepoint/base.xlsx", cfg.Planilha)
	assert.Equal(t, 5*time.Minute, cfg.Intervalo)
	assert.False(t, cfg.ObservarArquivo)
	assert.Equal(t, "https://app.powerbi.com/x", cfg.LinkPowerBI)
	assert.Equal(t, ":8055", cfg.Endereco, "chave ausente mantém o valor anterior")
	assert.NoError(t, cfg.Validar())
}

func TestAplicarAmbienteValoresInvalidos(t *testing.T) {
	cfg := configPadrao()
	assert.Error(t, aplicarAmbiente(&cfg, ambiente(map[string]string{"INTERVALO_ATUALIZACAO": "uma hora"})))

	cfg = configPadrao()
	assert.Error(t, aplicarAmbiente(&cfg, ambiente(map[string]string{"OBSERVAR_ARQUIVO": "talvez"})))
}

func TestLerYAML(t *testing.T) {
	caminho := filepath.Join(t.TempDir(), "painel.yaml")
	require.NoError(t, os.WriteFile(caminho, []byte(`
planilha: /dados/BASE BI CONTRATOS.xlsx
intervalo_atualizacao: 30m
titulo: Contratos - Outubro
banco_driver: postgres
`), 0o644))

	cfg := configPadrao()
	require.NoError(t, lerYAML(&cfg, caminho))
	assert.Equal(t, "/dados/BASE BI CONTRATOS.xlsx", cfg.Planilha)
	assert.Equal(t, 30*time.Minute, cfg.Intervalo)
	assert.Equal(t, "Contratos - Outubro", cfg.Titulo)
	assert.Equal(t, ":8055", cfg.Endereco)

	// o ambiente vence o YAML
	require.NoError(t, aplicarAmbiente(&cfg, ambiente(map[string]string{"INTERVALO_ATUALIZACAO": "2h"})))
	assert.Equal(t, 2*time.Hour, cfg.Intervalo)
}

func TestLerYAMLInexistente(t *testing.T) {
	cfg := configPadrao()
	assert.Error(t, lerYAML(&cfg, filepath.Join(t.TempDir(), "nada.yaml")))
}

func TestCompletarDSN(t *testing.T) {
	t.Setenv("HOST", "db")
	t.Setenv("PORT", "5432")
	t.Setenv("USER", "painel")
	t.Setenv("PASSWORD", "x")
	t.Setenv("DATABASE", "contratos")

	cfg := configPadrao()
	cfg.BancoDriver = "postgres"
	cfg.completarDSN()
	assert.Equal(t, "host=db port=5432 user=painel password=x dbname=contratos sslmode=disable", cfg.BancoDSN)
	assert.NoError(t, cfg.Validar())

	cfg.BancoDSN = "postgres://outro"
	cfg.completarDSN()
	assert.Equal(t, "postgres://outro", cfg.BancoDSN, "DSN explícito não é sobrescrito")
}

func TestValidar(t *testing.T) {
	casos := []struct {
		nome   string
		mudar  func(*Config)
		valido bool
	}{
		{"padrão", func(*Config) {}, true},
		{"sem planilha", func(c *Config) { c.Planilha = " " }, false},
		{"sem endereço", func(c *Config) { c.Endereco = "" }, false},
		{"intervalo zero", func(c *Config) { c.Intervalo = 0 }, false},
		{"intervalo negativo", func(c *Config) { c.Intervalo = -time.Minute }, false},
		{"intervalo de um segundo", func(c *Config) { c.Intervalo = time.Second }, true},
		{"driver desconhecido", func(c *Config) { c.BancoDriver = "mysql"; c.BancoDSN = "x" }, false},
		{"sqlite sem dsn", func(c *Config) { c.BancoDriver = "sqlite" }, false},
		{"sqlite com dsn", func(c *Config) { c.BancoDriver = "sqlite"; c.BancoDSN = "painel.db" }, true},
	}
	for _, c := range casos {
		t.Run(c.nome, func(t *testing.T) {
			cfg := configPadrao()
			c.mudar(&cfg)
			if c.valido {
				assert.NoError(t, cfg.Validar())
			} else {
				assert.Error(t, cfg.Validar())
			}
		})
	}
}
