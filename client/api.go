package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/siquiz-backend/models"
)

// APIError giữ status và thông báo lỗi server trả về trong {"error": "..."}
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

type API struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPI(baseURL, token string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type StartResponse struct {
	AttemptID  uuid.UUID  `json:"attempt_id"`
	StartedAt  time.Time  `json:"started_at"`
	DeadlineAt *time.Time `json:"deadline_at"`
	Resumed    bool       `json:"resumed"`
}

type QuizPage struct {
	Data       []models.QuizListItem `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	TotalPages int64                 `json:"totalPages"`
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return "", err
	}
	a.Token = out.Token
	return out.Token, nil
}

func (a *API) ListQuizzes(ctx context.Context, page int, search string) (*QuizPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if search != "" {
		q.Set("search", search)
	}
	var out QuizPage
	if err := a.do(ctx, http.MethodGet, "/api/quiz?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Take(ctx context.Context, quizID uuid.UUID) (*models.TakeQuizDTO, error) {
	var out models.TakeQuizDTO
	if err := a.do(ctx, http.MethodGet, "/api/quiz/"+quizID.String()+"/take", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Start(ctx context.Context, quizID uuid.UUID) (*StartResponse, error) {
	var out StartResponse
	if err := a.do(ctx, http.MethodPost, "/api/quiz/"+quizID.String()+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress lấy lại quiz theo đúng thứ tự của lượt làm và các câu đã lưu (dùng khi resume)
func (a *API) Progress(ctx context.Context, attemptID uuid.UUID) (*models.AttemptProgressDTO, *models.AttemptResultDTO, error) {
	var out struct {
		Type     string                     `json:"type"`
		Progress *models.AttemptProgressDTO `json:"progress"`
		Result   *models.AttemptResultDTO   `json:"result"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/attempt/"+attemptID.String(), nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Progress, out.Result, nil
}

func (a *API) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]models.SavedAnswer) error {
	return a.do(ctx, http.MethodPut, "/api/attempt/"+attemptID.String()+"/answers",
		map[string]interface{}{"answers": answers}, nil)
}

func (a *API) Submit(ctx context.Context, attemptID uuid.UUID, answers map[uuid.UUID]models.SavedAnswer) (*models.AttemptResultDTO, error) {
	var out models.AttemptResultDTO
	err := a.do(ctx, http.MethodPost, "/api/attempt/"+attemptID.String()+"/submit",
		map[string]interface{}{"answers": answers}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
