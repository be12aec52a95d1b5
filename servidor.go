package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"painelcontratos/atualizacao"
	"painelcontratos/grafico"
	"painelcontratos/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/painel.html
var templates embed.FS

type servidor struct {
	cfg         Config
	atualizador *atualizacao.Atualizador
	logger      *zap.Logger
	painel      *template.Template
}

type dadosPainel struct {
	Titulo      string
	LinkPowerBI string
	Recarregar  int
	Snapshot    *models.Snapshot
	Erro        string
	FalhouEm    string
}

type statusResposta struct {
	Planilha    string `json:"planilha"`
	Intervalo   string `json:"intervalo"`
	LastUpdated string `json:"last_updated,omitempty"`
	UltimoErro  string `json:"ultimo_erro,omitempty"`
	FalhouEm    string `json:"falhou_em,omitempty"`
}

func novoServidor(cfg Config, at *atualizacao.Atualizador, logger *zap.Logger) (*servidor, error) {
	p := message.NewPrinter(language.BrazilianPortuguese)
	funcs := template.FuncMap{
		"inteiro": func(n int) string { return p.Sprintf("%d", n) },
		"bilhoes": func(d decimal.Decimal) string {
			f, _ := d.Round(3).Float64()
			return p.Sprintf("%.3f", f)
		},
	}
	painel, err := template.New("painel.html").Funcs(funcs).ParseFS(templates, "templates/painel.html")
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar template do painel: %w", err)
	}
	return &servidor{cfg: cfg, atualizador: at, logger: logger, painel: painel}, nil
}

// corsMiddleware adiciona headers CORS para aceitar requisições de qualquer origem
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func (s *servidor) rotas() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.painelHandler)
	mux.HandleFunc("/api/indicadores", corsMiddleware(s.indicadoresHandler))
	mux.HandleFunc("/api/consumo", corsMiddleware(s.consumoHandler))
	mux.HandleFunc("/api/status", corsMiddleware(s.statusHandler))
	mux.HandleFunc("/api/atualizar", corsMiddleware(s.atualizarHandler))
	mux.HandleFunc("/grafico/consumo.png", corsMiddleware(s.graficoHandler))
	return mux
}

// executar sobe o atualizador e o servidor HTTP e derruba os dois quando ctx termina.
func (s *servidor) executar(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fimAtualizador := make(chan error, 1)
	go func() { fimAtualizador <- s.atualizador.Run(ctx) }()

	srv := &http.Server{
		Addr:              s.cfg.Endereco,
		Handler:           s.rotas(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fimHTTP := make(chan error, 1)
	go func() {
		s.logger.Info("servidor iniciado", zap.String("endereco", s.cfg.Endereco), zap.String("planilha", s.cfg.Planilha))
		fimHTTP <- srv.ListenAndServe()
	}()

	var err error
	atualizadorAtivo := true
	select {
	case <-ctx.Done():
	case err = <-fimHTTP:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case err = <-fimAtualizador:
		atualizadorAtivo = false
	}
	cancel()

	desligar, cancelDesligar := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDesligar()
	if errDesligar := srv.Shutdown(desligar); errDesligar != nil {
		s.logger.Warn("erro ao desligar servidor", zap.Error(errDesligar))
	}
	if atualizadorAtivo {
		<-fimAtualizador
	}
	s.logger.Info("servidor encerrado")
	return err
}

func (s *servidor) painelHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	e := s.atualizador.Estado()
	dados := dadosPainel{
		Titulo:      s.cfg.Titulo,
		LinkPowerBI: s.cfg.LinkPowerBI,
		Recarregar:  int(s.cfg.Intervalo / time.Second),
		Snapshot:    e.Snapshot,
	}
	if e.UltimoErro != nil {
		dados.Erro = e.UltimoErro.Error()
		dados.FalhouEm = e.FalhouEm.Format(models.FormatoDataHora)
	}

	var buf bytes.Buffer
	if err := s.painel.Execute(&buf, dados); err != nil {
		s.logger.Error("erro ao montar painel", zap.Error(err))
		http.Error(w, "Erro ao montar painel", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// snapshot responde 503 enquanto nenhuma leitura da planilha deu certo.
func (s *servidor) snapshot(w http.ResponseWriter) (*models.Snapshot, bool) {
	e := s.atualizador.Estado()
	if e.Snapshot == nil {
		msg := "Indicadores ainda não calculados"
		if e.UltimoErro != nil {
			msg += ": " + e.UltimoErro.Error()
		}
		http.Error(w, msg, http.StatusServiceUnavailable)
		return nil, false
	}
	return e.Snapshot, true
}

func escreverJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *servidor) indicadoresHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	escreverJSON(w, http.StatusOK, snap)
}

func (s *servidor) consumoHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	escreverJSON(w, http.StatusOK, snap.Distribuicao())
}

func (s *servidor) graficoHandler(w http.ResponseWriter, r *http.Request) {
	formato := grafico.PNG
	switch f := r.URL.Query().Get("formato"); f {
	case "", "png":
	case "svg":
		formato = grafico.SVG
	default:
		http.Error(w, "Parâmetro 'formato' deve ser png ou svg", http.StatusBadRequest)
		return
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := grafico.RenderConsumo(&buf, snap.Distribuicao(), formato); err != nil {
		s.logger.Error("erro ao desenhar gráfico", zap.Error(err))
		http.Error(w, "Erro ao desenhar gráfico: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", formato.ContentType())
	w.Write(buf.Bytes())
}

func (s *servidor) statusHandler(w http.ResponseWriter, r *http.Request) {
	e := s.atualizador.Estado()
	resp := statusResposta{Planilha: s.cfg.Planilha, Intervalo: s.cfg.Intervalo.String()}
	if e.Snapshot != nil {
		resp.LastUpdated = e.Snapshot.LastUpdated
	}
	if e.UltimoErro != nil {
		resp.UltimoErro = e.UltimoErro.Error()
		resp.FalhouEm = e.FalhouEm.Format(models.FormatoDataHora)
	}
	escreverJSON(w, http.StatusOK, resp)
}

// atualizarHandler só agenda o ciclo; a leitura da planilha acontece no
// loop do atualizador, nunca na goroutine da requisição.
func (s *servidor) atualizarHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Use POST", http.StatusMethodNotAllowed)
		return
	}
	s.atualizador.Solicitar()
	s.logger.Info("atualização solicitada via API", zap.String("origem", r.RemoteAddr))
	escreverJSON(w, http.StatusAccepted, map[string]string{"status": "atualização agendada"})
}
