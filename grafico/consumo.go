// Package grafico desenha o gráfico de barras "Consumo" do painel.
package grafico

import (
	"fmt"
	"io"
	"strconv"

	"painelcontratos/models"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Formato de saída do gráfico.
type Formato string

const (
	PNG Formato = "png"
	SVG Formato = "svg"
)

var cores = map[string]drawing.Color{
	"green":  drawing.ColorFromHex("2e7d32"),
	"orange": drawing.ColorFromHex("ef6c00"),
	"red":    drawing.ColorFromHex("c62828"),
}

var azulTitulo = drawing.ColorFromHex("005a8d")

// ContentType devolve o cabeçalho HTTP do formato.
func (f Formato) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// RenderConsumo escreve o gráfico das faixas de consumo em w.
func RenderConsumo(w io.Writer, faixas []models.FaixaConsumo, formato Formato) error {
	if len(faixas) == 0 {
		return fmt.Errorf("nenhuma faixa de consumo para desenhar")
	}

	maior := 0
	barras := make([]chart.Value, len(faixas))
	for i, f := range faixas {
		cor, ok := cores[f.Cor]
		if !ok {
			cor = chart.ColorBlue
		}
		barras[i] = chart.Value{
			Label: f.Rotulo + " (" + strconv.Itoa(f.Quantidade) + ")",
			Value: float64(f.Quantidade),
			Style: chart.Style{FillColor: cor, StrokeColor: cor, StrokeWidth: 1},
		}
		if f.Quantidade > maior {
			maior = f.Quantidade
		}
	}

	// go-chart recusa faixa de eixo nula (todas as barras iguais a zero)
	teto := float64(maior) * 1.1
	if teto < 1 {
		teto = 1
	}

	bc := chart.BarChart{
		Title: "Consumo",
		TitleStyle: chart.Style{
			FontSize:  20,
			FontColor: azulTitulo,
		},
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20}},
		Width:      900,
		Height:     420,
		BarWidth:   160,
		BarSpacing: 80,
		XAxis:      chart.Style{FontSize: 11},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: teto},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		Bars: barras,
	}

	renderer := chart.PNG
	if formato == SVG {
		renderer = chart.SVG
	}
	if err := bc.Render(renderer, w); err != nil {
		return fmt.Errorf("erro ao desenhar gráfico de consumo: %w", err)
	}
	return nil
}
