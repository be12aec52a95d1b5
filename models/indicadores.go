package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormatoDataHora é o formato de "Data da última atualização" exibido no painel.
const FormatoDataHora = "02/01/2006 15:04:05"

// Indicadores é o resultado de um ciclo de cálculo. Valores monetários em bilhões.
type Indicadores struct {
	TotalContratos       int             `json:"total_contracts"`
	ValorTotalContratos  decimal.Decimal `json:"total_contract_value"`
	ValorGlobalPendente  decimal.Decimal `json:"total_pending_value"`
	ProximosVencimento   int             `json:"near_expiry_count"`
	ConsumoAbaixo60      int             `json:"below_60"`
	ConsumoEntre60e80    int             `json:"between_60_80"`
	ConsumoAcima80       int             `json:"above_80"`
	ConsumoAmbiguo       int             `json:"ambiguous_consumption"`
	ContratosComMinimo   int             `json:"contracts_with_minimum"`
	MinimoAtingido       int             `json:"minimum_reached"`
	MateriaisSemContrato int             `json:"materials_without_contract"`
}

// FaixaConsumo é uma barra do gráfico de consumo.
type FaixaConsumo struct {
	Rotulo     string `json:"consumo"`
	Quantidade int    `json:"quantidade"`
	Cor        string `json:"cor"`
}

// Distribuicao devolve as três faixas de consumo na ordem do gráfico.
func (i Indicadores) Distribuicao() []FaixaConsumo {
	return []FaixaConsumo{
		{Rotulo: "Abaixo de 60%", Quantidade: i.ConsumoAbaixo60, Cor: "green"},
		{Rotulo: "Entre 60% e 80%", Quantidade: i.ConsumoEntre60e80, Cor: "orange"},
		{Rotulo: "Acima de 80%", Quantidade: i.ConsumoAcima80, Cor: "red"},
	}
}

// Snapshot é o estado entregue ao painel: indicadores mais o momento da carga.
type Snapshot struct {
	Indicadores
	Fonte        string    `json:"-"`
	AtualizadoEm time.Time `json:"-"`
	LastUpdated  string    `json:"last_updated"`
}

// NovoSnapshot carimba os indicadores com a hora da atualização.
func NovoSnapshot(fonte string, ind Indicadores, em time.Time) Snapshot {
	return Snapshot{
		Indicadores:  ind,
		Fonte:        fonte,
		AtualizadoEm: em,
		LastUpdated:  em.Format(FormatoDataHora),
	}
}
