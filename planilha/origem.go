package planilha

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"painelcontratos/models"

	"github.com/carlmjohnson/requests"
	"github.com/xuri/excelize/v2"
)

// Carregador abre a planilha de uma origem (caminho local ou URL http/https).
type Carregador struct {
	Client *http.Client
}

// Carregar é o atalho com o cliente HTTP padrão.
func Carregar(ctx context.Context, origem string) (models.Planilha, error) {
	return Carregador{}.Carregar(ctx, origem)
}

// Carregar lê a planilha inteira. Nada é reaproveitado entre chamadas.
func (c Carregador) Carregar(ctx context.Context, origem string) (models.Planilha, error) {
	f, err := c.abrir(ctx, origem)
	if err != nil {
		return models.Planilha{}, err
	}
	defer f.Close()

	return Ler(f)
}

func (c Carregador) abrir(ctx context.Context, origem string) (*excelize.File, error) {
	if !EhURL(origem) {
		f, err := excelize.OpenFile(origem)
		if err != nil {
			return nil, fmt.Errorf("erro ao abrir planilha %s: %w", origem, err)
		}
		return f, nil
	}

	var buf bytes.Buffer
	req := requests.URL(origem).ToBytesBuffer(&buf)
	if c.Client != nil {
		req = req.Client(c.Client)
	}
	if err := req.Fetch(ctx); err != nil {
		return nil, fmt.Errorf("erro ao baixar planilha %s: %w", origem, err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir planilha baixada de %s: %w", origem, err)
	}
	return f, nil
}

// EhURL diz se a origem deve ser baixada em vez de lida do disco.
func EhURL(origem string) bool {
	o := strings.ToLower(origem)
	return strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://")
}
