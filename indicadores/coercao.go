package indicadores

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	errDecimal = errors.New("não é um número decimal")
	errData    = errors.New("data fora dos formatos aceitos")

	cem = decimal.NewFromInt(100)

	// Dois ou mais grupos de milhar com o mesmo separador e sem parte decimal.
	milharPonto   = regexp.MustCompile(`^[-+]?\d{1,3}(\.\d{3}){2,}$`)
	milharVirgula = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3}){2,}$`)

	// Flag numérica: "1", "1.0", "1,00".
	umSimples = regexp.MustCompile(`^1([.,]0*)?$`)
)

// Formatos de data aceitos além do serial do Excel. O primeiro é o da aba Contratos.
var layoutsData = []string{
	"2/1/2006",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDecimal converte o texto de uma célula. Aceita "1234.56", "0,6",
// "1.234,56", "1,234.56", "1.234.567", "1,234,567", notação científica e
// sufixo "%". Um único separador sem o outro é sempre decimal: "1.234" e
// "1,234" valem 1,234. Célula vazia devolve ok=false sem erro.
func ParseDecimal(s string) (d decimal.Decimal, ok bool, err error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return decimal.Zero, false, nil
	}

	percentual := strings.HasSuffix(v, "%")
	if percentual {
		v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	}

	d, err = decimal.NewFromString(separadorDecimal(v))
	if err != nil {
		return decimal.Zero, false, errDecimal
	}
	if percentual {
		d = d.Div(cem)
	}
	return d, true, nil
}

func separadorDecimal(v string) string {
	switch {
	case milharPonto.MatchString(v):
		return strings.ReplaceAll(v, ".", "")
	case milharVirgula.MatchString(v):
		return strings.ReplaceAll(v, ",", "")
	}

	virgula := strings.LastIndex(v, ",")
	ponto := strings.LastIndex(v, ".")
	switch {
	case virgula < 0:
		return v
	case ponto < 0:
		if strings.Count(v, ",") == 1 {
			return strings.Replace(v, ",", ".", 1)
		}
		return v
	case virgula > ponto:
		return strings.Replace(strings.ReplaceAll(v, ".", ""), ",", ".", 1)
	default:
		return strings.ReplaceAll(v, ",", "")
	}
}

// ParseData aceita o serial de data do Excel (valor cru da célula) ou texto
// dia/mês/ano. O horário devolvido é de parede, em UTC.
func ParseData(s string) (t time.Time, ok bool, err error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, false, nil
	}

	if serial, errNum := strconv.ParseFloat(v, 64); errNum == nil {
		if math.IsNaN(serial) || math.IsInf(serial, 0) {
			return time.Time{}, false, errData
		}
		t, err = excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", errData, err)
		}
		return t, true, nil
	}

	for _, layout := range layoutsData {
		if t, err = time.Parse(layout, v); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, errData
}

// EhSim diz se a flag de consumo mínimo está ligada: "sim" (sem diferenciar
// maiúsculas) ou o número 1 escrito por extenso, sem percentual nem expoente.
func EhSim(s string) bool {
	v := strings.TrimSpace(s)
	return strings.EqualFold(v, "sim") || umSimples.MatchString(v)
}
