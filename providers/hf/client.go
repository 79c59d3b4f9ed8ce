package hf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingToken is returned before any network call when the client was
// built without an API token.
var ErrMissingToken = errors.New("hf: missing api token")

// StatusError reports a non-2xx response from the image endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hf: generation failed: %d", e.Code)
}

const (
	defaultModel  = "stabilityai/stable-diffusion-xl-base-1.0"
	defaultPrompt = "neural glitch entity"

	negativePrompt = "low quality, blurry, watermark, text, nsfw, distorted, artifacts"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	// Seed overrides the random seed when non-nil (tests).
	Seed func() int
}

func New(baseURL, token, proxyURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/hf-inference/models"
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	if strings.TrimSpace(proxyURL) != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    httpClient,
	}, nil
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NegativePrompt    string  `json:"negative_prompt"`
	Seed              int     `json:"seed"`
}

// Generate renders a single image and returns it as a data URI. The prompt
// falls back to a fixed default when empty.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.Token) == "" {
		return "", ErrMissingToken
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = defaultPrompt
	}

	seed := rand.Intn(999999)
	if c.Seed != nil {
		seed = c.Seed()
	}

	body := generateRequest{
		Inputs: prompt,
		Parameters: generateParameters{
			NumInferenceSteps: 40,
			GuidanceScale:     8.5,
			Width:             768,
			Height:            768,
			NegativePrompt:    negativePrompt,
			Seed:              seed,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+defaultModel, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw), nil
}
