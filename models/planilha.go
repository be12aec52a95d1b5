package models

import "github.com/go-gota/gota/dataframe"

// Nomes das abas da planilha BASE BI CONTRATOS.
const (
	AbaAnalise   = "ANÁLISE"
	AbaContratos = "Contratos"
	AbaDemanda   = "Demanda SPT"
)

// Colunas usadas nos indicadores.
const (
	ColDocCompra          = "Doc.compra"
	ColValFixado          = "Val.fixado"
	ColValGlPend          = "ValGlPend."
	ColFimValidade        = "FimValid/"
	ColFarolSaldo         = "Farol SALDO"
	ColConsumoMinimo      = "Consumo Mínimo"
	ColValorConsumoMinimo = "Valor Consumo Mínimo"
	ColContratoVigente    = "Contrato Vigente"

	// Colunas derivadas, calculadas a cada carga.
	ColValorConsumido = "valor_consumido_contrato"
	ColMinimoAtingido = "Consumo Mínimo Atingido"
)

// Planilha guarda as três abas carregadas. Todas as colunas são texto;
// a conversão de tipos fica a cargo de quem calcula os indicadores.
type Planilha struct {
	Analise   dataframe.DataFrame
	Contratos dataframe.DataFrame
	Demanda   dataframe.DataFrame
}
