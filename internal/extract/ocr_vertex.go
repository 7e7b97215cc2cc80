package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// VertexOCRPrompt asks the model for a verbatim transcription of a page image.
const VertexOCRPrompt = `Transcribe all text visible in this scanned page of a Brazilian legal resolution.
Keep the original Portuguese wording, accents and punctuation. Do not translate, summarise or comment.
Return only the transcribed text. If the page has no text, return an empty response.`

// GenerativeModel is the part of *genai.GenerativeModel the recognizer needs.
type GenerativeModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

// VertexRecognizer recognizes page images with a Gemini model.
type VertexRecognizer struct {
	Model GenerativeModel
}

func (v VertexRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read page image: %w", err)
	}
	resp, err := v.Model.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(VertexOCRPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := responseText(resp)
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", fmt.Errorf("gemini response indicates refusal: %q", text)
		}
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	s := strings.TrimSpace(sb.String())
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
