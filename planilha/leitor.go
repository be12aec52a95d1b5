// Package planilha carrega as abas da BASE BI CONTRATOS em dataframes.
package planilha

import (
	"fmt"
	"strings"

	"painelcontratos/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// Aba descreve como ler uma aba: linha do cabeçalho (0 = primeira linha
// física) e colunas obrigatórias.
type Aba struct {
	Nome           string
	LinhaCabecalho int
	Colunas        []string
}

var (
	abaAnalise = Aba{
		Nome:           models.AbaAnalise,
		LinhaCabecalho: 1,
		Colunas: []string{
			models.ColDocCompra,
			models.ColValFixado,
			models.ColValGlPend,
			models.ColFimValidade,
			models.ColFarolSaldo,
		},
	}
	abaContratos = Aba{
		Nome:           models.AbaContratos,
		LinhaCabecalho: 0,
		Colunas: []string{
			models.ColDocCompra,
			models.ColValFixado,
			models.ColValGlPend,
			models.ColConsumoMinimo,
			models.ColValorConsumoMinimo,
			models.ColFimValidade,
		},
	}
	abaDemanda = Aba{
		Nome:           models.AbaDemanda,
		LinhaCabecalho: 0,
		Colunas:        []string{models.ColContratoVigente},
	}
)

// Ler lê as três abas do arquivo já aberto.
func Ler(f *excelize.File) (models.Planilha, error) {
	var p models.Planilha
	var err error

	if p.Analise, err = LerAba(f, abaAnalise); err != nil {
		return models.Planilha{}, err
	}
	if p.Contratos, err = LerAba(f, abaContratos); err != nil {
		return models.Planilha{}, err
	}
	if p.Demanda, err = LerAba(f, abaDemanda); err != nil {
		return models.Planilha{}, err
	}
	return p, nil
}

// LerAba devolve a aba como dataframe de texto, com nomes de coluna aparados.
func LerAba(f *excelize.File, aba Aba) (dataframe.DataFrame, error) {
	nome, ok := procurarAba(f, aba.Nome)
	if !ok {
		return dataframe.DataFrame{}, &models.MissingSheetError{Sheet: aba.Nome}
	}

	// valores crus: 0.6 em vez de "60%", serial de data em vez do texto formatado
	linhas, err := f.GetRows(nome, excelize.Options{RawCellValue: true})
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("erro ao ler aba %q: %w", aba.Nome, err)
	}

	if len(linhas) <= aba.LinhaCabecalho {
		return dataframe.DataFrame{}, &models.MalformedColumnError{Sheet: aba.Nome, Column: aba.Colunas[0]}
	}

	cabecalho := make([]string, len(linhas[aba.LinhaCabecalho]))
	for i, col := range linhas[aba.LinhaCabecalho] {
		cabecalho[i] = normalizarNome(col)
	}
	for _, col := range aba.Colunas {
		if indice(cabecalho, col) < 0 {
			return dataframe.DataFrame{}, &models.MalformedColumnError{Sheet: aba.Nome, Column: col}
		}
	}

	registros := [][]string{cabecalho}
	for _, linha := range linhas[aba.LinhaCabecalho+1:] {
		if linhaVazia(linha) {
			continue
		}
		reg := make([]string, len(cabecalho))
		for i := 0; i < len(reg) && i < len(linha); i++ {
			reg[i] = norm.NFC.String(linha[i])
		}
		registros = append(registros, reg)
	}

	if len(registros) == 1 {
		return abaSemLinhas(cabecalho), nil
	}

	df := dataframe.LoadRecords(registros,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("erro ao montar dataframe da aba %q: %w", aba.Nome, df.Err)
	}
	// gota renomeia colunas duplicadas (col_0, col_1)
	for _, col := range aba.Colunas {
		if indice(df.Names(), col) < 0 {
			return dataframe.DataFrame{}, &models.MalformedColumnError{Sheet: aba.Nome, Column: col}
		}
	}
	return df, nil
}

// abaSemLinhas monta um dataframe vazio; LoadRecords recusa registros só com cabeçalho.
func abaSemLinhas(cabecalho []string) dataframe.DataFrame {
	cols := make([]series.Series, len(cabecalho))
	for i, nome := range cabecalho {
		cols[i] = series.New([]string{}, series.String, nome)
	}
	return dataframe.New(cols...)
}

// procurarAba compara nomes em NFC: "ANÁLISE" pode vir decomposto do Excel para Mac.
func procurarAba(f *excelize.File, nome string) (string, bool) {
	alvo := norm.NFC.String(nome)
	for _, n := range f.GetSheetList() {
		if norm.NFC.String(n) == alvo {
			return n, true
		}
	}
	return "", false
}

func normalizarNome(col string) string {
	return norm.NFC.String(strings.TrimSpace(col))
}

func linhaVazia(linha []string) bool {
	for _, v := range linha {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indice(nomes []string, nome string) int {
	for i, n := range nomes {
		if n == nome {
			return i
		}
	}
	return -1
}
