package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"painelcontratos/armazenamento"
	"painelcontratos/atualizacao"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose       bool
	arquivoConfig string
	flagPlanilha  string
	flagEndereco  string
	flagIntervalo time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "painel",
	Short: "Painel de indicadores dos contratos de materiais",
	Long: `Lê a planilha BASE BI CONTRATOS (abas ANÁLISE, Contratos e Demanda SPT),
calcula os indicadores de contratos e serve um painel web que se atualiza sozinho.

Sem subcomando equivale a "painel servir".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("erro ao iniciar logger: %w", err)
		}

		if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("erro ao carregar arquivo .env: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: executarServir,
}

var servirCmd = &cobra.Command{
	Use:   "servir",
	Short: "Sobe o painel web e atualiza os indicadores periodicamente",
	RunE:  executarServir,
}

var calcularCmd = &cobra.Command{
	Use:   "calcular",
	Short: "Calcula os indicadores uma vez e imprime o JSON",
	RunE:  executarCalcular,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log em nível debug")
	rootCmd.PersistentFlags().StringVar(&arquivoConfig, "config", "", "arquivo YAML de configuração")
	rootCmd.PersistentFlags().StringVar(&flagPlanilha, "planilha", "", "caminho ou URL da planilha")
	rootCmd.PersistentFlags().StringVar(&flagEndereco, "endereco", "", "endereço de escuta do servidor")
	rootCmd.PersistentFlags().DurationVar(&flagIntervalo, "intervalo", 0, "intervalo entre atualizações (ex.: 30m)")

	rootCmd.AddCommand(servirCmd, calcularCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configDoComando resolve a configuração na ordem padrão, YAML, ambiente, flags.
func configDoComando(cmd *cobra.Command) (Config, error) {
	cfg := configPadrao()
	if arquivoConfig != "" {
		if err := lerYAML(&cfg, arquivoConfig); err != nil {
			return Config{}, err
		}
	}
	if err := aplicarAmbiente(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("planilha") {
		cfg.Planilha = flagPlanilha
	}
	if flags.Changed("endereco") {
		cfg.Endereco = flagEndereco
	}
	if flags.Changed("intervalo") {
		cfg.Intervalo = flagIntervalo
	}

	cfg.completarDSN()
	if err := cfg.Validar(); err != nil {
		return Config{}, fmt.Errorf("configuração inválida: %w", err)
	}
	return cfg, nil
}

// abrirBanco devolve nil quando nenhum banco foi configurado.
func abrirBanco(ctx context.Context, cfg Config) (*armazenamento.Store, error) {
	if cfg.BancoDriver == "" {
		return nil, nil
	}
	store, err := armazenamento.Abrir(ctx, cfg.BancoDriver, cfg.BancoDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("banco de indicadores conectado", zap.String("driver", cfg.BancoDriver))
	return store, nil
}

func novoAtualizador(cfg Config, store *armazenamento.Store) *atualizacao.Atualizador {
	at := atualizacao.Novo(cfg.Planilha, cfg.Intervalo, logger)
	at.Observar = cfg.ObservarArquivo
	if store != nil {
		at.Publicador = store
	}
	return at
}

func executarServir(cmd *cobra.Command, args []string) error {
	cfg, err := configDoComando(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := abrirBanco(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	at := novoAtualizador(cfg, store)
	if store != nil {
		salvo, ok, err := store.Ultimo(ctx, cfg.Planilha)
		if err != nil {
			logger.Warn("não foi possível ler o último snapshot salvo", zap.Error(err))
		} else if ok {
			at.Semear(salvo)
			logger.Info("painel semeado com snapshot salvo", zap.String("atualizado_em", salvo.LastUpdated))
		}
	}

	srv, err := novoServidor(cfg, at, logger)
	if err != nil {
		return err
	}
	return srv.executar(ctx)
}

func executarCalcular(cmd *cobra.Command, args []string) error {
	cfg, err := configDoComando(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := abrirBanco(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	s, err := novoAtualizador(cfg, store).Atualizar(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
