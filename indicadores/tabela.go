package indicadores

import (
	"fmt"
	"strings"

	"painelcontratos/models"

	"github.com/go-gota/gota/dataframe"
	"github.com/shopspring/decimal"
)

func coluna(df dataframe.DataFrame, aba, col string) ([]string, error) {
	s := df.Col(col)
	if s.Err != nil {
		return nil, &models.MalformedColumnError{Sheet: aba, Column: col}
	}
	return s.Records(), nil
}

// colunaDecimal converte a coluna inteira; células vazias ficam com Valid=false.
func colunaDecimal(df dataframe.DataFrame, aba, col string) ([]decimal.NullDecimal, error) {
	valores, err := coluna(df, aba, col)
	if err != nil {
		return nil, err
	}
	out := make([]decimal.NullDecimal, len(valores))
	for i, v := range valores {
		d, ok, err := ParseDecimal(v)
		if err != nil {
			return nil, &models.DataCoercionError{Sheet: aba, Column: col, Row: i, Value: v, Err: err}
		}
		out[i] = decimal.NullDecimal{Decimal: d, Valid: ok}
	}
	return out, nil
}

// somarBilhoes soma a coluna (vazias não contam) e divide por 1e9.
func somarBilhoes(df dataframe.DataFrame, aba, col string) (decimal.Decimal, error) {
	valores, err := colunaDecimal(df, aba, col)
	if err != nil {
		return decimal.Zero, err
	}
	soma := decimal.Zero
	for _, v := range valores {
		if v.Valid {
			soma = soma.Add(v.Decimal)
		}
	}
	return soma.Div(bilhao), nil
}

func validarData(v string) error {
	_, _, err := ParseData(v)
	return err
}

// validar percorre a coluna e devolve a primeira célula que não converte.
func validar(df dataframe.DataFrame, aba, col string, conv func(string) error) error {
	valores, err := coluna(df, aba, col)
	if err != nil {
		return err
	}
	for i, v := range valores {
		if err := conv(v); err != nil {
			return &models.DataCoercionError{Sheet: aba, Column: col, Row: i, Value: v, Err: err}
		}
	}
	return nil
}

func filtrar(df dataframe.DataFrame, f dataframe.F) (dataframe.DataFrame, error) {
	out := df.Filter(f)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("erro ao filtrar coluna %q: %w", f.Colname, out.Err)
	}
	return out, nil
}

// distintos conta valores distintos de Doc.compra, ignorando células vazias.
func distintos(ids []string) int {
	vistos := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if vazio(id) {
			continue
		}
		vistos[id] = struct{}{}
	}
	return len(vistos)
}

func vazio(v string) bool {
	return strings.TrimSpace(v) == ""
}
