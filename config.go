package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"painelcontratos/armazenamento"

	"gopkg.in/yaml.v3"
)

// Config reúne as opções do painel. Precedência: padrão < YAML < ambiente < flags.
type Config struct {
	Planilha        string        `yaml:"planilha"`
	Endereco        string        `yaml:"endereco"`
	Intervalo       time.Duration `yaml:"intervalo_atualizacao"`
	ObservarArquivo bool          `yaml:"observar_arquivo"`
	Titulo          string        `yaml:"titulo"`
	LinkPowerBI     string        `yaml:"link_powerbi"`
	BancoDriver     string        `yaml:"banco_driver"`
	BancoDSN        string        `yaml:"banco_dsn"`
}

func configPadrao() Config {
	return Config{
		Planilha:        "BASE BI CONTRATOS.xlsx",
		Endereco:        ":8055",
		Intervalo:       time.Hour,
		ObservarArquivo: true,
		Titulo:          "Análise Descritiva Contratos de Materiais",
	}
}

// lerYAML sobrepõe cfg com as chaves presentes no arquivo.
func lerYAML(cfg *Config, caminho string) error {
	conteudo, err := os.ReadFile(caminho)
	if err != nil {
		return fmt.Errorf("erro ao ler arquivo de configuração: %w", err)
	}
	if err := yaml.Unmarshal(conteudo, cfg); err != nil {
		return fmt.Errorf("erro ao interpretar %s: %w", caminho, err)
	}
	return nil
}

// aplicarAmbiente lê as variáveis de ambiente conhecidas; lookup é os.LookupEnv
// fora dos testes.
func aplicarAmbiente(cfg *Config, lookup func(string) (string, bool)) error {
	texto := map[string]*string{
		"PLANILHA":     &cfg.Planilha,
		"ENDERECO":     &cfg.Endereco,
		"TITULO":       &cfg.Titulo,
		"LINK_POWERBI": &cfg.LinkPowerBI,
		"BANCO_DRIVER": &cfg.BancoDriver,
		"BANCO_DSN":    &cfg.BancoDSN,
	}
	for chave, destino := range texto {
		if v, ok := lookup(chave); ok {
			*destino = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("INTERVALO_ATUALIZACAO"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("INTERVALO_ATUALIZACAO inválido %q: %w", v, err)
		}
		cfg.Intervalo = d
	}
	if v, ok := lookup("OBSERVAR_ARQUIVO"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("OBSERVAR_ARQUIVO inválido %q: %w", v, err)
		}
		cfg.ObservarArquivo = b
	}
	return nil
}

// completarDSN monta o DSN do Postgres a partir de HOST/PORT/USER/PASSWORD/DATABASE
// quando BANCO_DSN não foi informado.
func (c *Config) completarDSN() {
	if c.BancoDriver == "postgres" && c.BancoDSN == "" {
		c.BancoDSN = armazenamento.DSNPostgres()
	}
}

func (c Config) Validar() error {
	var erros []error
	if strings.TrimSpace(c.Planilha) == "" {
		erros = append(erros, errors.New("planilha não informada"))
	}
	if strings.TrimSpace(c.Endereco) == "" {
		erros = append(erros, errors.New("endereço do servidor não informado"))
	}
	if c.Intervalo < time.Second {
		erros = append(erros, fmt.Errorf("intervalo de atualização muito curto: %s (mínimo 1s)", c.Intervalo))
	}
	if c.BancoDriver != "" {
		if !armazenamento.DriverValido(c.BancoDriver) {
			erros = append(erros, fmt.Errorf("BANCO_DRIVER desconhecido: %q (use %s)", c.BancoDriver, strings.Join(armazenamento.Drivers, " ou ")))
		} else if c.BancoDSN == "" {
			erros = append(erros, errors.New("BANCO_DSN não informado"))
		}
	}
	return errors.Join(erros...)
}
