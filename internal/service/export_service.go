package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type progressReporter interface {
	ReportByCourse(ctx context.Context, courseID string) ([]models.StudentProgress, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders per-course progress reports.
type ExportService struct {
	progress  progressReporter
	courses   courseFinder
	exporters map[string]export.Exporter
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(progress progressReporter, courses courseFinder, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		progress: progress,
		courses:  courses,
		exporters: map[string]export.Exporter{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// CourseProgress renders the progress of every student of a course.
func (s *ExportService) CourseProgress(ctx context.Context, courseID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Formato no soportado, use csv o pdf")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Curso no encontrado")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al generar el reporte")
	}
	rows, err := s.progress.ReportByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al generar el reporte")
	}

	content, err := exporter.Render(progressDataset(course, rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error al generar el reporte")
	}

	s.logger.Info("progress report generated",
		zap.String("course_id", courseID),
		zap.String("format", format),
		zap.Int("rows", len(rows)),
	)
	return &ExportFile{
		FileName:    fmt.Sprintf("progreso_%s_%s%s", sanitizeFilename(course.Slug), s.now().UTC().Format("20060102_150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}

func progressDataset(course *models.Course, rows []models.StudentProgress) export.Dataset {
	data := export.Dataset{
		Title:   "Progreso: " + course.Title,
		Headers: []string{"Estudiante", "Email", "Videos completados", "Progreso (%)", "Completado", "Última actividad"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.UTC().Format("2006-01-02")
		}
		data.Rows = append(data.Rows, []string{
			r.FullName,
			r.Email,
			strconv.Itoa(r.CompletedCount),
			strconv.Itoa(r.ProgressPercentage),
			completed,
			r.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return data
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
