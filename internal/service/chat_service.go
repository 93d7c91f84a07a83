package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/repository"
	"ai-doc-chat-go/internal/retrieval"
	"ai-doc-chat-go/pkg/llm"
	"ai-doc-chat-go/pkg/log"
)

// ChatService answers questions grounded in the user's selected documents.
type ChatService interface {
	StreamResponse(ctx context.Context, req model.ChatRequest, userID uint, ws *websocket.Conn, shouldStop func() bool) error
}

type chatService struct {
	docRepo          repository.DocumentRepository
	conversationRepo repository.ConversationRepository
	assembler        *retrieval.Assembler
	llmClient        llm.Client
}

// NewChatService creates a new ChatService instance.
func NewChatService(docRepo repository.DocumentRepository, conversationRepo repository.ConversationRepository, assembler *retrieval.Assembler, llmClient llm.Client) ChatService {
	return &chatService{
		docRepo:          docRepo,
		conversationRepo: conversationRepo,
		assembler:        assembler,
		llmClient:        llmClient,
	}
}

// StreamResponse runs the full retrieval-augmented flow for one question:
// gather the candidate chunks of the requested documents, assemble the most
// relevant ones into a context, and stream the model's answer over the
// websocket. When nothing relevant is found the configured no-result text is
// sent instead of calling the model.
func (s *chatService) StreamResponse(ctx context.Context, req model.ChatRequest, userID uint, ws *websocket.Conn, shouldStop func() bool) error {
	candidates, err := s.collectCandidates(userID, req.DocumentIDs)
	if err != nil {
		return err
	}
	log.Infof("[ChatService] collected %d candidate chunks from %d documents", len(candidates), len(req.DocumentIDs))

	assembled, err := s.assembler.Assemble(ctx, req.Message, candidates)
	if errors.Is(err, retrieval.ErrNoRelevantContent) {
		return s.sendNoResult(ctx, userID, req.Message, ws)
	}
	if err != nil {
		return fmt.Errorf("failed to assemble context: %w", err)
	}
	log.Infof("[ChatService] assembled context from %d chunks, %d tokens", len(assembled.Chunks), assembled.TokensUsed)

	systemMsg := s.buildSystemMessage(assembled.Text)
	history, err := s.loadHistory(ctx, userID)
	if err != nil {
		log.Errorf("failed to load conversation history: %v", err)
		history = []model.ChatMessage{}
	}
	messages := composeMessages(systemMsg, history, req.Message)

	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	if err := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor); err != nil {
		return err
	}

	sendCompletion(ws)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// Save with a background context so a cancelled request does not lose
		// an answer that was already generated.
		if err := s.addMessageToConversation(context.Background(), userID, req.Message, fullAnswer); err != nil {
			log.Errorf("failed to save conversation history: %v", err)
		}
	}

	return nil
}

// collectCandidates loads the chunks of every requested document the user
// owns and that finished processing. Unknown, foreign and still-processing
// documents are skipped rather than failing the whole question.
func (s *chatService) collectCandidates(userID uint, documentIDs []string) ([]model.DocumentChunk, error) {
	var candidates []model.DocumentChunk
	for _, id := range documentIDs {
		doc, err := s.docRepo.FindByID(id)
		if err != nil {
			log.Warnf("[ChatService] skipping unknown document %s", id)
			continue
		}
		if doc.UserID != userID {
			log.Warnf("[ChatService] skipping document %s not owned by user %d", id, userID)
			continue
		}
		if doc.Status != model.DocumentStatusReady {
			log.Warnf("[ChatService] skipping document %s with status %d", id, doc.Status)
			continue
		}

		chunks, err := s.docRepo.FindChunksByDocument(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunks of document %s: %w", id, err)
		}
		for _, c := range chunks {
			candidates = append(candidates, *c)
		}
	}
	return candidates, nil
}

func (s *chatService) buildSystemMessage(contextText string) string {
	prompt := config.Conf.LLM.SystemPrompt
	if prompt == "" {
		prompt = "You are a helpful assistant. Answer strictly based on the provided document excerpts. If the excerpts do not contain the answer, say so."
	}
	var sys strings.Builder
	sys.WriteString(prompt)
	sys.WriteString("\n\nDocument excerpts:\n")
	sys.WriteString(contextText)
	return sys.String()
}

// sendNoResult answers without the model when retrieval found nothing above
// the relevance threshold. The exchange is still recorded in the history.
func (s *chatService) sendNoResult(ctx context.Context, userID uint, question string, ws *websocket.Conn) error {
	noResult := config.Conf.LLM.NoResultText
	if noResult == "" {
		noResult = "I could not find anything relevant to your question in the selected documents."
	}

	payload := map[string]string{"chunk": noResult}
	b, _ := json.Marshal(payload)
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	sendCompletion(ws)

	if err := s.addMessageToConversation(ctx, userID, question, noResult); err != nil {
		log.Errorf("failed to save conversation history: %v", err)
	}
	return nil
}

func (s *chatService) loadHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	convID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.conversationRepo.GetConversationHistory(ctx, convID)
}

func composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

func (s *chatService) addMessageToConversation(ctx context.Context, userID uint, question, answer string) error {
	conversationID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get or create conversation ID: %w", err)
	}

	history, err := s.conversationRepo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to get conversation history: %w", err)
	}

	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)

	return s.conversationRepo.UpdateConversationHistory(ctx, conversationID, history)
}

// wsWriterInterceptor wraps a websocket connection so the full answer can be
// captured while fragments stream out, each wrapped as {"chunk":"..."}.
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage satisfies the llm.MessageWriter interface.
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		return nil
	}
	w.writer.Write(data)
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion notifies the client that the answer is complete.
func sendCompletion(ws *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
