package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LikhithSP/Knowledge-Tree/internal/ai"
)

func request(task ai.TaskType) ai.CompletionRequest {
	return ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
		Task:     task,
	}
}

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter(nil)
	router.Register("openrouter", ai.NewMockProvider("Hello!"))

	resp, err := router.Complete(context.Background(), request(ai.TaskArticle))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter(nil)
	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")
	router.Register("openrouter", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), request(ai.TaskQuiz))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
	if len(failing.Requests()) != 1 || len(fallback.Requests()) != 1 {
		t.Errorf("requests = %d/%d, want 1/1", len(failing.Requests()), len(fallback.Requests()))
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter(nil)
	cause := errors.New("fail 2")
	router.Register("openrouter", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("ollama", &ai.MockProvider{Err: cause})

	_, err := router.Complete(context.Background(), request(ai.TaskArticle))
	if !errors.Is(err, cause) {
		t.Fatalf("Complete() error = %v, want wrapping %v", err, cause)
	}
}

func TestRouter_NoProvider(t *testing.T) {
	router := ai.NewRouter(nil)
	if router.HasProvider() {
		t.Error("HasProvider() = true on empty router")
	}
	if _, err := router.Complete(context.Background(), request(ai.TaskArticle)); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("Complete() error = %v, want ErrNoProvider", err)
	}
	if err := router.HealthCheck(context.Background()); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("HealthCheck() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter(nil)
	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	router.Register("up", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil with one healthy provider", err)
	}
}

func TestRouter_Budget(t *testing.T) {
	budget := ai.NewBudget(20)
	router := ai.NewRouter(budget)
	router.Register("mock", ai.NewMockProvider("twelve chars")) // 10 in + 12 out

	if _, err := router.Complete(context.Background(), request(ai.TaskArticle)); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	if budget.Used() != 22 {
		t.Errorf("Used() = %d, want 22", budget.Used())
	}
	if _, err := router.Complete(context.Background(), request(ai.TaskQuiz)); !errors.Is(err, ai.ErrBudgetExhausted) {
		t.Errorf("second Complete() error = %v, want ErrBudgetExhausted", err)
	}
}

func TestMockProvider_PerTask(t *testing.T) {
	mock := &ai.MockProvider{
		Response:  "default",
		Responses: map[ai.TaskType]string{ai.TaskQuiz: "quiz"},
	}
	for task, want := range map[ai.TaskType]string{ai.TaskArticle: "default", ai.TaskQuiz: "quiz"} {
		resp, err := mock.Complete(context.Background(), request(task))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Content != want {
			t.Errorf("%s: Content = %q, want %q", task, resp.Content, want)
		}
	}
}

func TestTaskType_String(t *testing.T) {
	tests := []struct {
		task     ai.TaskType
		expected string
	}{
		{ai.TaskArticle, "article"},
		{ai.TaskQuiz, "quiz"},
		{ai.TaskType(99), "unknown"},
	}
	for _, tt := range tests {
		if tt.task.String() != tt.expected {
			t.Errorf("TaskType.String() = %q, want %q", tt.task.String(), tt.expected)
		}
	}
}
