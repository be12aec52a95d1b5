// Package atualizacao recalcula periodicamente os indicadores a partir da
// planilha e guarda o último resultado bom para o painel.
package atualizacao

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"painelcontratos/indicadores"
	"painelcontratos/models"
	"painelcontratos/planilha"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrAtualizacaoEmAndamento indica que um ciclo foi pulado porque outro ainda roda.
var ErrAtualizacaoEmAndamento = errors.New("atualização já em andamento")

// CarregarFunc abre a planilha indicada por origem.
type CarregarFunc func(ctx context.Context, origem string) (models.Planilha, error)

// Publicador recebe cada snapshot novo (ex.: banco de dados).
type Publicador interface {
	Publicar(ctx context.Context, s models.Snapshot) error
}

// Estado é o que o painel precisa saber do atualizador.
type Estado struct {
	Snapshot   *models.Snapshot
	UltimoErro error
	FalhouEm   time.Time
}

type Atualizador struct {
	Origem     string
	Intervalo  time.Duration
	Observar   bool
	Carregar   CarregarFunc
	Publicador Publicador
	Logger     *zap.Logger
	Agora      func() time.Time

	// espera após o último evento do arquivo antes de recalcular
	Debounce time.Duration

	sem       *semaphore.Weighted
	pedidos   chan struct{}
	emVoo     sync.WaitGroup
	mu        sync.RWMutex
	atual     *models.Snapshot
	ultimoErr error
	falhouEm  time.Time
}

func Novo(origem string, intervalo time.Duration, logger *zap.Logger) *Atualizador {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Atualizador{
		Origem:    origem,
		Intervalo: intervalo,
		Carregar:  planilha.Carregar,
		Logger:    logger,
		Agora:     time.Now,
		Debounce:  500 * time.Millisecond,
		sem:       semaphore.NewWeighted(1),
		pedidos:   make(chan struct{}, 1),
	}
}

// Estado devolve uma cópia do último snapshot bom e da última falha.
func (a *Atualizador) Estado() Estado {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e := Estado{UltimoErro: a.ultimoErr, FalhouEm: a.falhouEm}
	if a.atual != nil {
		s := *a.atual
		e.Snapshot = &s
	}
	return e
}

// Semear instala um snapshot salvo antes do primeiro ciclo.
func (a *Atualizador) Semear(s models.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.atual == nil {
		a.atual = &s
	}
}

// Solicitar pede um ciclo fora de hora ao loop de Run. Não bloqueia; pedidos
// repetidos enquanto um está pendente viram um só.
func (a *Atualizador) Solicitar() {
	select {
	case a.pedidos <- struct{}{}:
	default:
	}
}

// Atualizar roda um ciclo completo: carga, cálculo e publicação. Se outro
// ciclo estiver rodando devolve ErrAtualizacaoEmAndamento sem esperar.
func (a *Atualizador) Atualizar(ctx context.Context) (models.Snapshot, error) {
	if !a.sem.TryAcquire(1) {
		a.Logger.Debug("ciclo pulado, atualização anterior ainda em curso")
		return models.Snapshot{}, ErrAtualizacaoEmAndamento
	}
	defer a.sem.Release(1)

	inicio := a.Agora()
	p, err := a.Carregar(ctx, a.Origem)
	if err != nil {
		return models.Snapshot{}, a.falha(fmt.Errorf("erro ao carregar planilha: %w", err))
	}

	ind, err := indicadores.Calcular(p, inicio)
	if err != nil {
		return models.Snapshot{}, a.falha(fmt.Errorf("erro ao calcular indicadores: %w", err))
	}

	s := models.NovoSnapshot(a.Origem, ind, inicio)
	a.mu.Lock()
	a.atual = &s
	a.ultimoErr = nil
	a.falhouEm = time.Time{}
	a.mu.Unlock()

	if ind.ConsumoAmbiguo > 0 {
		a.Logger.Warn("contratos com linhas em faixas de consumo diferentes",
			zap.Int("contratos", ind.ConsumoAmbiguo))
	}
	a.Logger.Info("indicadores atualizados",
		zap.String("planilha", a.Origem),
		zap.Int("contratos", ind.TotalContratos),
		zap.Duration("duracao", time.Since(inicio)))

	if a.Publicador != nil {
		if err := a.Publicador.Publicar(ctx, s); err != nil {
			a.Logger.Error("erro ao publicar snapshot", zap.Error(err))
		}
	}
	return s, nil
}

func (a *Atualizador) falha(err error) error {
	a.mu.Lock()
	a.ultimoErr = err
	a.falhouEm = a.Agora()
	a.mu.Unlock()
	a.Logger.Error("atualização falhou, mantendo último resultado",
		zap.String("planilha", a.Origem), zap.Error(err))
	return err
}

// Run faz uma carga imediata e depois recalcula a cada Intervalo, a cada
// pedido de Solicitar e, se Observar, quando o arquivo local muda. Cada
// ciclo roda em sua própria goroutine; ciclos sobrepostos são pulados.
// Bloqueia até ctx ser cancelado.
func (a *Atualizador) Run(ctx context.Context) error {
	if a.Intervalo <= 0 {
		return fmt.Errorf("intervalo de atualização inválido: %s", a.Intervalo)
	}
	defer a.emVoo.Wait()

	var eventos <-chan fsnotify.Event
	var errosObs <-chan error
	alvo := ""
	if a.Observar && !planilha.EhURL(a.Origem) {
		w, caminho, err := a.observar()
		if err != nil {
			a.Logger.Warn("não foi possível observar a planilha, seguindo só com o intervalo",
				zap.String("planilha", a.Origem), zap.Error(err))
		} else {
			defer w.Close()
			eventos, errosObs, alvo = w.Events, w.Errors, caminho
		}
	}

	a.disparar(ctx)

	ticker := time.NewTicker(a.Intervalo)
	defer ticker.Stop()
	verifica := time.NewTicker(100 * time.Millisecond)
	defer verifica.Stop()

	var pendente time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.disparar(ctx)
		case <-a.pedidos:
			a.disparar(ctx)
		case ev, ok := <-eventos:
			if !ok {
				eventos = nil
				continue
			}
			if filepath.Clean(ev.Name) != alvo || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			a.Logger.Debug("planilha alterada", zap.String("evento", ev.Op.String()))
			pendente = time.Now()
		case err, ok := <-errosObs:
			if !ok {
				errosObs = nil
				continue
			}
			a.Logger.Warn("erro do observador de arquivo", zap.Error(err))
		case <-verifica.C:
			if !pendente.IsZero() && time.Since(pendente) >= a.Debounce {
				pendente = time.Time{}
				a.disparar(ctx)
			}
		}
	}
}

func (a *Atualizador) disparar(ctx context.Context) {
	a.emVoo.Add(1)
	go func() {
		defer a.emVoo.Done()
		if _, err := a.Atualizar(ctx); errors.Is(err, ErrAtualizacaoEmAndamento) {
			a.Logger.Info("tick ignorado: atualização anterior ainda em andamento")
		}
	}()
}

// observar vigia o diretório da planilha; editores costumam salvar trocando
// o arquivo, o que derruba um watch feito direto nele.
func (a *Atualizador) observar() (*fsnotify.Watcher, string, error) {
	caminho, err := filepath.Abs(a.Origem)
	if err != nil {
		return nil, "", err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, "", err
	}
	if err := w.Add(filepath.Dir(caminho)); err != nil {
		w.Close()
		return nil, "", err
	}
	a.Logger.Debug("observando planilha", zap.String("arquivo", caminho))
	return w, filepath.Clean(caminho), nil
}
