// Package indicadores calcula os KPIs do painel a partir das abas carregadas.
// Não faz I/O: a mesma planilha gera sempre os mesmos indicadores.
package indicadores

import (
	"errors"
	"time"

	"painelcontratos/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
)

// Classificação de consumo mínimo por linha de contrato.
const (
	ConsumoMinimoAtingido    = "Consumo mínimo atingido"
	ConsumoMinimoNaoAtingido = "Consumo mínimo não atingido"
	SemValorMinimo           = "Não tem valor mínimo"
)

// DiasVencimento é a janela de "próximos ao vencimento" (6 meses).
const DiasVencimento = 180

// ContratosForaDoMinimo nunca entram na contagem de consumo mínimo atingido.
var ContratosForaDoMinimo = []string{"JA10063222", "JA10114401"}

var (
	limiteMedio = decimal.RequireFromString("0.6")
	limiteAlto  = decimal.RequireFromString("0.8")
	bilhao      = decimal.New(1, 9)

	errCelulaVazia = errors.New("célula vazia")
)

// Calcular roda todos os indicadores. Qualquer falha de conversão aborta o
// ciclo inteiro; não há resultado parcial.
func Calcular(p models.Planilha, agora time.Time) (models.Indicadores, error) {
	var ind models.Indicadores

	ids, err := coluna(p.Analise, models.AbaAnalise, models.ColDocCompra)
	if err != nil {
		return models.Indicadores{}, err
	}
	ind.TotalContratos = distintos(ids)

	if ind.ValorTotalContratos, err = somarBilhoes(p.Analise, models.AbaAnalise, models.ColValFixado); err != nil {
		return models.Indicadores{}, err
	}
	if ind.ValorGlobalPendente, err = somarBilhoes(p.Analise, models.AbaAnalise, models.ColValGlPend); err != nil {
		return models.Indicadores{}, err
	}

	if ind.ProximosVencimento, err = ProximosVencimento(p.Analise, agora); err != nil {
		return models.Indicadores{}, err
	}

	faixas, err := ClassificarConsumo(p.Analise)
	if err != nil {
		return models.Indicadores{}, err
	}
	ind.ConsumoAbaixo60 = faixas.Abaixo60
	ind.ConsumoEntre60e80 = faixas.Entre60e80
	ind.ConsumoAcima80 = faixas.Acima80
	ind.ConsumoAmbiguo = faixas.Ambiguos

	if ind.ContratosComMinimo, ind.MinimoAtingido, err = ConsumoMinimo(p.Contratos); err != nil {
		return models.Indicadores{}, err
	}

	if ind.MateriaisSemContrato, err = MateriaisSemContrato(p.Demanda); err != nil {
		return models.Indicadores{}, err
	}

	return ind, nil
}

// ProximosVencimento conta LINHAS da aba de análise com FimValid/ até
// agora+180 dias. Um contrato com várias linhas conta várias vezes.
func ProximosVencimento(analise dataframe.DataFrame, agora time.Time) (int, error) {
	if err := validar(analise, models.AbaAnalise, models.ColFimValidade, validarData); err != nil {
		return 0, err
	}

	limite := relogio(agora).Add(DiasVencimento * 24 * time.Hour)
	proximos, err := filtrar(analise, dataframe.F{
		Colname:    models.ColFimValidade,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			t, ok, err := ParseData(el.String())
			return err == nil && ok && !t.After(limite)
		},
	})
	if err != nil {
		return 0, err
	}
	return proximos.Nrow(), nil
}

// Faixas é a distribuição de contratos por Farol SALDO.
type Faixas struct {
	Abaixo60   int
	Entre60e80 int
	Acima80    int
	// Ambiguos conta contratos cujas linhas caem em faixas diferentes.
	Ambiguos int
}

type faixa int

const (
	faixaAbaixo60 faixa = iota
	faixaEntre60e80
	faixaAcima80
)

func faixaDe(v decimal.Decimal) faixa {
	switch {
	case v.LessThan(limiteMedio):
		return faixaAbaixo60
	case v.LessThan(limiteAlto):
		return faixaEntre60e80
	default:
		return faixaAcima80
	}
}

// ClassificarConsumo distribui cada contrato em uma única faixa, pela
// primeira linha dele na aba. Farol SALDO vazio ou não numérico é erro.
func ClassificarConsumo(analise dataframe.DataFrame) (Faixas, error) {
	ids, err := coluna(analise, models.AbaAnalise, models.ColDocCompra)
	if err != nil {
		return Faixas{}, err
	}
	farol, err := coluna(analise, models.AbaAnalise, models.ColFarolSaldo)
	if err != nil {
		return Faixas{}, err
	}

	primeira := make(map[string]faixa)
	ambiguos := make(map[string]bool)
	for i, v := range farol {
		d, ok, err := ParseDecimal(v)
		if err == nil && !ok {
			err = errCelulaVazia
		}
		if err != nil {
			return Faixas{}, &models.DataCoercionError{
				Sheet: models.AbaAnalise, Column: models.ColFarolSaldo, Row: i, Value: v, Err: err,
			}
		}

		id := ids[i]
		if vazio(id) {
			continue
		}
		f := faixaDe(d)
		if anterior, visto := primeira[id]; visto {
			if anterior != f {
				ambiguos[id] = true
			}
			continue
		}
		primeira[id] = f
	}

	var out Faixas
	for _, f := range primeira {
		switch f {
		case faixaAbaixo60:
			out.Abaixo60++
		case faixaEntre60e80:
			out.Entre60e80++
		case faixaAcima80:
			out.Acima80++
		}
	}
	out.Ambiguos = len(ambiguos)
	return out, nil
}

// DerivarConsumoMinimo acrescenta à aba de contratos as colunas
// valor_consumido_contrato e Consumo Mínimo Atingido.
func DerivarConsumoMinimo(contratos dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := validar(contratos, models.AbaContratos, models.ColFimValidade, validarData); err != nil {
		return dataframe.DataFrame{}, err
	}

	fixado, err := colunaDecimal(contratos, models.AbaContratos, models.ColValFixado)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	pendente, err := colunaDecimal(contratos, models.AbaContratos, models.ColValGlPend)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	minimo, err := colunaDecimal(contratos, models.AbaContratos, models.ColValorConsumoMinimo)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	consumido := make([]string, len(fixado))
	classe := make([]string, len(fixado))
	for i := range fixado {
		temConsumo := fixado[i].Valid && pendente[i].Valid
		var valor decimal.Decimal
		if temConsumo {
			valor = fixado[i].Decimal.Sub(pendente[i].Decimal)
			consumido[i] = valor.String()
		}

		switch {
		case !minimo[i].Valid:
			classe[i] = SemValorMinimo
		case temConsumo && valor.GreaterThanOrEqual(minimo[i].Decimal):
			classe[i] = ConsumoMinimoAtingido
		default:
			classe[i] = ConsumoMinimoNaoAtingido
		}
	}

	out := contratos.
		Mutate(series.New(consumido, series.String, models.ColValorConsumido)).
		Mutate(series.New(classe, series.String, models.ColMinimoAtingido))
	if out.Err != nil {
		return dataframe.DataFrame{}, out.Err
	}
	return out, nil
}

// ConsumoMinimo devolve quantos contratos têm cláusula de consumo mínimo e
// quantos deles já atingiram o mínimo (fora as exceções fixas).
func ConsumoMinimo(contratos dataframe.DataFrame) (comMinimo, atingido int, err error) {
	derivado, err := DerivarConsumoMinimo(contratos)
	if err != nil {
		return 0, 0, err
	}

	comClausula, err := filtrar(derivado, dataframe.F{
		Colname:    models.ColConsumoMinimo,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && EhSim(el.String())
		},
	})
	if err != nil {
		return 0, 0, err
	}
	ids, err := coluna(comClausula, models.AbaContratos, models.ColDocCompra)
	if err != nil {
		return 0, 0, err
	}
	comMinimo = distintos(ids)

	atingidos, err := filtrar(comClausula, dataframe.F{
		Colname:    models.ColMinimoAtingido,
		Comparator: series.Eq,
		Comparando: ConsumoMinimoAtingido,
	})
	if err != nil {
		return 0, 0, err
	}
	atingidos, err = filtrar(atingidos, dataframe.F{
		Colname:    models.ColDocCompra,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !excluidoDoMinimo(el.String())
		},
	})
	if err != nil {
		return 0, 0, err
	}
	ids, err = coluna(atingidos, models.AbaContratos, models.ColDocCompra)
	if err != nil {
		return 0, 0, err
	}
	return comMinimo, distintos(ids), nil
}

// MateriaisSemContrato conta linhas da demanda com Contrato Vigente exatamente "Não".
func MateriaisSemContrato(demanda dataframe.DataFrame) (int, error) {
	sem, err := filtrar(demanda, dataframe.F{
		Colname:    models.ColContratoVigente,
		Comparator: series.Eq,
		Comparando: "Não",
	})
	if err != nil {
		return 0, err
	}
	return sem.Nrow(), nil
}

func excluidoDoMinimo(id string) bool {
	for _, ex := range ContratosForaDoMinimo {
		if id == ex {
			return true
		}
	}
	return false
}

// relogio trata agora como horário de parede em UTC, igual às datas lidas da planilha.
func relogio(agora time.Time) time.Time {
	return time.Date(agora.Year(), agora.Month(), agora.Day(),
		agora.Hour(), agora.Minute(), agora.Second(), agora.Nanosecond(), time.UTC)
}
