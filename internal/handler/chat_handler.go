package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ai-doc-chat-go/internal/middleware"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/service"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatHandler handles WebSocket chat connections.
type ChatHandler struct {
	chatService   service.ChatService
	jwtManager    *token.JWTManager
	stopToken     string
	stopTokenLock sync.Mutex
	// Per-connection stop flags, keyed by connection pointer.
	stopFlags sync.Map
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

// GetWebsocketToken mints a short-lived token the client presents when
// opening the chat websocket, since browsers cannot attach the Authorization
// header to an upgrade request.
func (h *ChatHandler) GetWebsocketToken(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	claims, _ := c.Get("claims")
	username := ""
	if cc, ok := claims.(*token.CustomClaims); ok {
		username = cc.Username
	}

	wsToken, err := h.jwtManager.GenerateWSToken(userID, username)
	if err != nil {
		log.Errorf("[ChatHandler] failed to generate websocket token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"wsToken": wsToken}})
}

// GetWebsocketStopToken returns a token that authorizes stopping a stream.
func (h *ChatHandler) GetWebsocketStopToken(c *gin.Context) {
	h.stopTokenLock.Lock()
	defer h.stopTokenLock.Unlock()
	h.stopToken = "WSS_STOP_CMD_" + token.GenerateRandomString(16)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"cmdToken": h.stopToken}})
}

// Handle accepts one WebSocket connection and serves chat questions on it
// until the client disconnects. Each incoming message is either a stop
// command or a question with the documents it should be answered from.
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	log.Infof("websocket connection established, user: %d", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("failed to read websocket message: %v", err)
			break
		}

		if h.handleStopCommand(conn, message) {
			continue
		}

		var req model.ChatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Message == "" {
			errResp := map[string]string{"error": "invalid chat request"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			continue
		}

		key := sessionKey(conn)
		h.stopFlags.Delete(key)
		shouldStop := func() bool {
			v, ok := h.stopFlags.Load(key)
			return ok && v.(bool)
		}

		err = h.chatService.StreamResponse(c.Request.Context(), req, claims.UserID, conn, shouldStop)
		if err != nil {
			log.Errorf("failed to stream chat response: %v", err)
			errResp := map[string]string{"error": "the assistant is temporarily unavailable, please try again later"}
			b, _ := json.Marshal(errResp)
			_ = conn.WriteMessage(websocket.TextMessage, b)
			sendErrorCompletion(conn)
			break
		}
	}
}

// handleStopCommand reports whether the message was a stop command, setting
// the connection's stop flag when the command token matches.
func (h *ChatHandler) handleStopCommand(conn *websocket.Conn, message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl map[string]interface{}
	if err := json.Unmarshal(message, &ctrl); err != nil {
		return false
	}
	t, ok := ctrl["type"].(string)
	if !ok || t != "stop" {
		return false
	}
	tok, ok := ctrl["_internal_cmd_token"].(string)
	if !ok {
		return true
	}

	h.stopTokenLock.Lock()
	valid := tok == h.stopToken && h.stopToken != ""
	h.stopTokenLock.Unlock()
	if valid {
		h.stopFlags.Store(sessionKey(conn), true)
		resp := map[string]interface{}{
			"type":      "stop",
			"message":   "response stopped",
			"timestamp": time.Now().UnixMilli(),
			"date":      time.Now().Format("2006-01-02T15:04:05"),
		}
		b, _ := json.Marshal(resp)
		_ = conn.WriteMessage(websocket.TextMessage, b)
	}
	return true
}

func sendErrorCompletion(conn *websocket.Conn) {
	resp := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(resp)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func sessionKey(conn *websocket.Conn) string {
	return fmt.Sprintf("%p", conn)
}
