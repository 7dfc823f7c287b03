package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marketline/chat-server/internal/chat"
)

func registerUser(t *testing.T, env *testEnv, name, email string) string {
	t.Helper()

	token, err := env.authService.Register(context.Background(), name, email, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", name, err)
	}
	return token
}

func doJSON(t *testing.T, env *testEnv, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != "" {
		reqBody = bytes.NewBufferString(body)
	} else {
		reqBody = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(resp, req)
	return resp
}

func TestConversationsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON(t, env, http.MethodGet, "/api/conversations", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.Code)
	}
}

func TestStartConversationAndSendFlow(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := registerUser(t, env, "alice", "alice@example.com")
	bobToken := registerUser(t, env, "bob", "bob@example.com")

	// Alice starts a conversation with Bob (user id 2) with an opening message.
	resp := doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken,
		`{"recipient_id":2,"initial_message":"hi, is the bike still available?"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var started struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &started); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if started.ConversationID == 0 {
		t.Fatal("expected a conversation id")
	}

	// Starting again resolves to the same conversation.
	resp = doJSON(t, env, http.MethodPost, "/api/conversations", bobToken, `{"recipient_id":1}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var startedAgain struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &startedAgain); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if startedAgain.ConversationID != started.ConversationID {
		t.Fatalf("pair resolved to different conversations: %d vs %d", started.ConversationID, startedAgain.ConversationID)
	}

	// Bob has one unread message.
	resp = doJSON(t, env, http.MethodGet, "/api/messages/unread", bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var unread struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &unread); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if unread.Count != 1 {
		t.Fatalf("expected unread count 1, got %d", unread.Count)
	}

	// Bob's conversation list shows the unread count and last message.
	resp = doJSON(t, env, http.MethodGet, "/api/conversations", bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var listed struct {
		Count         int                `json:"count"`
		Conversations []ConversationView `json:"conversations"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if listed.Count != 1 || len(listed.Conversations) != 1 {
		t.Fatalf("expected one conversation, got %+v", listed)
	}
	conv := listed.Conversations[0]
	if conv.UnreadCount != 1 {
		t.Errorf("expected unread_count 1, got %d", conv.UnreadCount)
	}
	if conv.Participant == nil || conv.Participant.Name != "alice" {
		t.Errorf("expected alice as the other participant, got %+v", conv.Participant)
	}
	if conv.LastMessage == nil || conv.LastMessage.SenderName != "alice" {
		t.Errorf("expected alice's message as last, got %+v", conv.LastMessage)
	}

	// Opening the conversation marks it read.
	path := fmt.Sprintf("/api/conversations/%d/messages", started.ConversationID)
	resp = doJSON(t, env, http.MethodGet, path, bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, env, http.MethodGet, "/api/messages/unread", bobToken, "")
	if err := json.Unmarshal(resp.Body.Bytes(), &unread); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if unread.Count != 0 {
		t.Fatalf("expected unread count 0 after reading, got %d", unread.Count)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := registerUser(t, env, "alice", "alice@example.com")
	registerUser(t, env, "bob", "bob@example.com")
	malloryToken := registerUser(t, env, "mallory", "mallory@example.com")

	resp := doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken, `{"recipient_id":2}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var started struct {
		ConversationID int64 `json:"conversation_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &started); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	path := fmt.Sprintf("/api/conversations/%d/messages", started.ConversationID)

	// Whitespace-only text is rejected with no side effects.
	resp = doJSON(t, env, http.MethodPost, path, aliceToken, `{"text":"   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank text, got %d", resp.Code)
	}

	// A non-participant cannot send.
	resp = doJSON(t, env, http.MethodPost, path, malloryToken, `{"text":"let me in"}`)
	if resp.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-participant, got %d", resp.Code)
	}

	// Nor read.
	resp = doJSON(t, env, http.MethodGet, path, malloryToken, "")
	if resp.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-participant read, got %d", resp.Code)
	}

	// Unknown conversation.
	resp = doJSON(t, env, http.MethodPost, "/api/conversations/999/messages", aliceToken, `{"text":"hello"}`)
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown conversation, got %d", resp.Code)
	}

	// A valid send succeeds.
	resp = doJSON(t, env, http.MethodPost, path, aliceToken, `{"text":"hello bob"}`)
	if resp.Code != http.StatusCreated {
		t.Errorf("expected 201 for valid send, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestStartConversationRejectsBlankInitialMessage(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := registerUser(t, env, "alice", "alice@example.com")
	bobToken := registerUser(t, env, "bob", "bob@example.com")

	resp := doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken,
		`{"recipient_id":2,"initial_message":"   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank initial message, got %d: %s", resp.Code, resp.Body.String())
	}

	// No message was recorded for the recipient.
	resp = doJSON(t, env, http.MethodGet, "/api/messages/unread", bobToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var unread struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &unread); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if unread.Count != 0 {
		t.Fatalf("expected no unread messages, got %d", unread.Count)
	}
}

func TestOnlineUsersReflectsPresence(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := registerUser(t, env, "alice", "alice@example.com")

	var online struct {
		Count   int     `json:"count"`
		UserIDs []int64 `json:"user_ids"`
	}

	resp := doJSON(t, env, http.MethodGet, "/api/users/online", aliceToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &online); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if online.Count != 0 {
		t.Fatalf("expected nobody online, got %+v", online)
	}

	client := chat.NewClient("conn-alice", 1, "alice")
	env.router.Connect(client)
	defer env.router.Disconnect(client)

	resp = doJSON(t, env, http.MethodGet, "/api/users/online", aliceToken, "")
	if err := json.Unmarshal(resp.Body.Bytes(), &online); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if online.Count != 1 || len(online.UserIDs) != 1 || online.UserIDs[0] != 1 {
		t.Fatalf("expected alice online, got %+v", online)
	}
}

func TestStartConversationRejectsSelfAndUnknownRecipient(t *testing.T) {
	env := newTestEnv(t)

	aliceToken := registerUser(t, env, "alice", "alice@example.com")

	resp := doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken, `{"recipient_id":1}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for self conversation, got %d", resp.Code)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/conversations", aliceToken, `{"recipient_id":42}`)
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown recipient, got %d", resp.Code)
	}
}
