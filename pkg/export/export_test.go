package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Progreso: Go desde cero",
		Headers: []string{"Estudiante", "Email", "Progreso"},
		Rows: [][]string{
			{"Ana Núñez", "ana@example.com", "75"},
			{"Luis"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	exp := NewCSVExporter()
	out, err := exp.Render(sampleDataset())
	require.NoError(t, err)

	body := string(bytes.TrimPrefix(out, []byte("\ufeff")))
	assert.Equal(t, "Estudiante,Email,Progreso\nAna Núñez,ana@example.com,75\nLuis,,\n", body)
	assert.Equal(t, ".csv", exp.Extension())
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
