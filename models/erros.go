package models

import "fmt"

// MissingSheetError indica que uma aba obrigatória não existe na planilha.
type MissingSheetError struct {
	Sheet string
}

func (e *MissingSheetError) Error() string {
	return fmt.Sprintf("aba %q não encontrada na planilha", e.Sheet)
}

// MalformedColumnError indica que uma coluna esperada não existe depois da
// normalização dos nomes.
type MalformedColumnError struct {
	Sheet  string
	Column string
}

func (e *MalformedColumnError) Error() string {
	return fmt.Sprintf("aba %q: coluna %q não encontrada", e.Sheet, e.Column)
}

// DataCoercionError identifica a célula que não pôde ser convertida.
// Row é a posição da linha de dados (0 = primeira linha após o cabeçalho).
type DataCoercionError struct {
	Sheet  string
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *DataCoercionError) Error() string {
	msg := fmt.Sprintf("aba %q, coluna %q, linha %d: valor inválido %q", e.Sheet, e.Column, e.Row, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataCoercionError) Unwrap() error {
	return e.Err
}
