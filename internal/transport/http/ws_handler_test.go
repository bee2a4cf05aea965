package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"itqan-progress-service/internal/app"
	"itqan-progress-service/internal/config"
	"itqan-progress-service/internal/domain"
	"itqan-progress-service/internal/infra/memory"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	store := memory.NewProgressStore()
	store.SeedUser(domain.UserStats{UserID: "u1", Grade: 5})
	service := newTestService(store)
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Start an attempt.
	start := map[string]any{
		"type":    "start",
		"payload": map[string]any{"quizId": "quiz-1"},
	}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	msgType, payload := readNext(conn, t, "started")
	attemptID, _ := payload["id"].(string)
	if msgType != "started" || attemptID == "" {
		t.Fatalf("expected started with attempt id, got %s %v", msgType, payload)
	}

	// Submit the answers.
	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"attemptId": attemptID,
			"answers": []map[string]any{
				{"questionId": "q1", "optionId": "o2"},
			},
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	// The submitting connection sees the result; the same user's feed also
	// carries it as a progress event.
	resultSeen := false
	progressSeen := false
	for i := 0; i < 3 && !(resultSeen && progressSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "result":
			resultSeen = true
			if score, _ := payload["score"].(float64); score != 100 {
				t.Fatalf("expected score 100, got %v", payload["score"])
			}
		case "progress":
			progressSeen = true
		}
	}
	if !resultSeen || !progressSeen {
		t.Fatalf("expected result and progress, got result=%v progress=%v", resultSeen, progressSeen)
	}
}

func TestWebSocketRequiresOneIdentity(t *testing.T) {
	service := newTestService(memory.NewProgressStore())
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(service).ServeWS))
	defer server.Close()

	for _, query := range []string{"", "?userId=u1&guestName=Zaid"} {
		resp, err := http.Get(server.URL + query)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, resp.StatusCode)
		}
	}
}

func newTestService(store *memory.ProgressStore) *app.ProgressService {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(nil), time.Minute)
	cfg := config.Gamification{SpeedBonusEnabled: true, SpeedBonusPercentage: 10}
	return app.NewProgressService(quizzes, catalog, store, store, store, cfg)
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:               "quiz-1",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 1,
				},
			},
		},
	}
}
