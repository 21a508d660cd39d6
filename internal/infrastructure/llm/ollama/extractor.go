package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/infrastructure/extractor/document"
)

type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) ExtractAcordForm(ctx context.Context, content io.Reader, docType domain.DocumentType) (domain.AcordFormExtraction, error) {
	if !docType.IsAcordForm() {
		return domain.AcordFormExtraction{}, domain.WrapError(domain.ErrInvalidInput, "extract acord form", fmt.Errorf("%s is not an acord form", docType))
	}
	text, err := renderText(content, "")
	if err != nil {
		return domain.AcordFormExtraction{}, err
	}

	var response acordResponse
	if err := e.client.generateJSON(ctx, "extract_acord", buildAcordPrompt(docType, text), &response); err != nil {
		return domain.AcordFormExtraction{}, err
	}
	return response.toDomain(), nil
}

func (e *Extractor) ExtractLossRun(ctx context.Context, content io.Reader) (domain.LossRunExtraction, error) {
	text, err := renderText(content, "")
	if err != nil {
		return domain.LossRunExtraction{}, err
	}

	var response lossRunResponse
	if err := e.client.generateJSON(ctx, "extract_loss_run", buildLossRunPrompt(text), &response); err != nil {
		return domain.LossRunExtraction{}, err
	}
	return response.toDomain(), nil
}

// ExtractExposureSchedule reads workbook statements of values directly and
// asks the model only for other layouts.
func (e *Extractor) ExtractExposureSchedule(ctx context.Context, content io.Reader) (domain.ExposureScheduleExtraction, error) {
	doc, err := document.Read(content, "")
	if err != nil {
		return domain.ExposureScheduleExtraction{}, err
	}

	schedule, ok, err := doc.ExposureSchedule()
	if err != nil {
		return domain.ExposureScheduleExtraction{}, err
	}
	if ok {
		slog.Debug("exposure_schedule_parsed", "locations", len(schedule.Locations))
		return schedule, nil
	}

	text, err := doc.Text()
	if err != nil {
		return domain.ExposureScheduleExtraction{}, err
	}
	var response exposureResponse
	if err := e.client.generateJSON(ctx, "extract_exposure", buildExposurePrompt(text), &response); err != nil {
		return domain.ExposureScheduleExtraction{}, err
	}
	return response.toDomain(), nil
}
