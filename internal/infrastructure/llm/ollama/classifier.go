package ollama

import (
	"context"
	"io"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/infrastructure/extractor/document"
)

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, content io.Reader, fileName string) (domain.ClassificationResult, error) {
	text, err := renderText(content, fileName)
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	var response struct {
		DocumentType string  `json:"document_type"`
		Confidence   float64 `json:"confidence"`
	}
	if err := c.client.generateJSON(ctx, "classify", buildClassificationPrompt(fileName, text), &response); err != nil {
		return domain.ClassificationResult{}, err
	}
	return domain.ClassificationResult{
		DocumentType: domain.ParseDocumentType(response.DocumentType),
		Confidence:   response.Confidence,
	}, nil
}

func renderText(content io.Reader, fileName string) (string, error) {
	doc, err := document.Read(content, fileName)
	if err != nil {
		return "", err
	}
	return doc.Text()
}
