package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rookgm/kopisort/internal/models"
)

// default time of retry after
const delaySeconds = 60

// label keywords reported by the bean classifier
var (
	defectKeywords  = []string{"rusak", "cacat", "buruk", "jelek", "defect", "bad"}
	healthyKeywords = []string{"bagus", "baik", "sehat", "good", "healthy"}
)

// Prediction is classifier output for one sample
type Prediction struct {
	Label      string
	Confidence float64
}

// IsDefective maps label onto defect/healthy. Unknown labels count as healthy.
func (p Prediction) IsDefective() bool {
	label := strings.ToLower(p.Label)
	for _, kw := range healthyKeywords {
		if strings.Contains(label, kw) {
			return false
		}
	}
	for _, kw := range defectKeywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// Client talks to the external bean classifier
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates new Client instance
func NewClient(baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: baseURL,
	}
}

type classifyRequest struct {
	ImageRef string `json:"image_ref"`
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classify asks classifier to label sample image
// 200 — успешная обработка запроса.
// 429 — превышено количество запросов к сервису.
// 500 — внутренняя ошибка сервера.
func (c *Client) Classify(ctx context.Context, imageRef string) (*Prediction, error) {
	// POST /api/classify
	url, err := url.JoinPath(c.baseURL, "api", "classify")
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(classifyRequest{ImageRef: imageRef})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		clsResp := classifyResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&clsResp); err != nil {
			return nil, err
		}
		if clsResp.Confidence < 0 || clsResp.Confidence > 1 {
			return nil, fmt.Errorf("classifier returned confidence %v out of range", clsResp.Confidence)
		}
		return &Prediction{
			Label:      clsResp.Label,
			Confidence: clsResp.Confidence,
		}, nil
	case http.StatusTooManyRequests:
		t, err := strconv.Atoi(resp.Header.Get("Retry-After"))
		if err != nil {
			t = delaySeconds
		}
		return nil, models.NewTooManyRequestsError(time.Duration(t) * time.Second)
	default:
		return nil, fmt.Errorf("classifier responded with status %d", resp.StatusCode)
	}
}
