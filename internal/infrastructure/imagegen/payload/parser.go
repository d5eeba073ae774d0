// Package payload extracts artifact references from image-generation responses.
//
// Backends disagree on where the image lives. Each known shape is a variant tried
// in a fixed order; the first one that yields at least one artifact wins.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"paper-reader/internal/domain/entity"
)

var errShapeAbsent = errors.New("shape not present")

type variant struct {
	name    string
	extract func(raw []byte) ([]entity.ArtifactRef, error)
}

var variants = []variant{
	{name: "dashscope output.results", extract: extractDashScope},
	{name: "openai data", extract: extractOpenAI},
	{name: "gemini inlineData", extract: extractGeminiCamel},
	{name: "gemini inline_data", extract: extractGeminiSnake},
}

// Variants lists the recognized shapes in priority order.
func Variants() []string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.name
	}
	return names
}

func Extract(raw []byte) ([]entity.ArtifactRef, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", entity.ErrUnrecognizedResponseFormat)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: payload is not JSON", entity.ErrUnrecognizedResponseFormat)
	}

	reasons := make([]string, 0, len(variants))
	for _, v := range variants {
		refs, err := v.extract(raw)
		if err == nil && len(refs) > 0 {
			return refs, nil
		}
		if err == nil {
			err = errShapeAbsent
		}
		reasons = append(reasons, v.name+": "+err.Error())
	}

	return nil, fmt.Errorf("%w: tried %s", entity.ErrUnrecognizedResponseFormat, strings.Join(reasons, "; "))
}

type dashScopeBody struct {
	Output *struct {
		Results []struct {
			URL     string `json:"url"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"results"`
	} `json:"output"`
}

func extractDashScope(raw []byte) ([]entity.ArtifactRef, error) {
	var body dashScopeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if body.Output == nil || len(body.Output.Results) == 0 {
		return nil, errShapeAbsent
	}

	var refs []entity.ArtifactRef
	var rejected []string
	for _, r := range body.Output.Results {
		if r.URL == "" {
			if r.Code != "" {
				rejected = append(rejected, r.Code+" "+r.Message)
			}
			continue
		}
		refs = append(refs, entity.ArtifactRef{URL: r.URL})
	}
	if len(refs) == 0 && len(rejected) > 0 {
		return nil, fmt.Errorf("all results rejected: %s", strings.Join(rejected, ", "))
	}
	return refs, nil
}

type openAIBody struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func extractOpenAI(raw []byte) ([]entity.ArtifactRef, error) {
	var body openAIBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, errShapeAbsent
	}

	var refs []entity.ArtifactRef
	for _, d := range body.Data {
		switch {
		case d.URL != "":
			refs = append(refs, entity.ArtifactRef{URL: d.URL})
		case d.B64JSON != "":
			data, err := DecodeBase64(d.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("b64_json: %w", err)
			}
			refs = append(refs, entity.ArtifactRef{Data: data})
		}
	}
	return refs, nil
}

type geminiCamelBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func extractGeminiCamel(raw []byte) ([]entity.ArtifactRef, error) {
	var body geminiCamelBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	var refs []entity.ArtifactRef
	for _, c := range body.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := DecodeBase64(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("inlineData: %w", err)
			}
			refs = append(refs, entity.ArtifactRef{Data: data, MimeType: p.InlineData.MimeType})
		}
	}
	return refs, nil
}

type geminiSnakeBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func extractGeminiSnake(raw []byte) ([]entity.ArtifactRef, error) {
	var body geminiSnakeBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	var refs []entity.ArtifactRef
	for _, c := range body.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := DecodeBase64(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("inline_data: %w", err)
			}
			refs = append(refs, entity.ArtifactRef{Data: data, MimeType: p.InlineData.MimeType})
		}
	}
	return refs, nil
}

// DecodeBase64 accepts padded and unpadded standard encoding, with or without a data: URI prefix.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
